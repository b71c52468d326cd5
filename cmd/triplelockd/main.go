package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/triplelock/internal/async"
	"github.com/joseph-ayodele/triplelock/internal/auth"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/core"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/export"
	"github.com/joseph-ayodele/triplelock/internal/oracle"
	"github.com/joseph-ayodele/triplelock/internal/payments"
	"github.com/joseph-ayodele/triplelock/internal/projects"
	repo "github.com/joseph-ayodele/triplelock/internal/repository"
	svc "github.com/joseph-ayodele/triplelock/internal/server"
	"github.com/joseph-ayodele/triplelock/internal/verification"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, toml or json); env vars take precedence")
	flag.Parse()

	cfg, err := common.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(2)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		os.Exit(1)
	}
	defer svc.CloseDB(store, logger)

	if err := svc.PingDB(ctx, store, logger, 5*time.Second); err != nil {
		os.Exit(1)
	}

	expenditureRepo := repo.NewExpenditureRepository(store, logger)
	projectRepo := repo.NewProjectRepository(store, logger)
	projectService := projects.NewService(projectRepo, logger)

	bus := events.NewBus(logger, events.WithBuffer(cfg.Server.EventBuffer))
	bus.Subscribe(events.LogSubscriber(logger))

	analyzer := oracle.NewClient(oracle.Config{
		URL:     cfg.Oracle.URL,
		APIKey:  cfg.Oracle.APIKey,
		Timeout: cfg.Oracle.Timeout,
	}, logger)
	gate := verification.NewGate(analyzer, verification.Policy{
		Threshold: cfg.Policy.VerificationThreshold,
		Timeout:   cfg.Oracle.Timeout,
	}, nil, logger)

	rail := payments.NewClient(payments.Config{
		URL:     cfg.Transfer.URL,
		APIKey:  cfg.Transfer.APIKey,
		Timeout: cfg.Transfer.Timeout,
	}, logger)

	engine := core.NewEngine(expenditureRepo, projectService, gate, rail,
		core.WithPublisher(bus),
		core.WithRequiredQuorum(cfg.Policy.RequiredQuorum),
		core.WithLogger(logger),
	)

	queue := async.NewVerificationQueue(engine, logger,
		async.WithWorkers(cfg.Retry.Workers),
		async.WithQueueSize(cfg.Retry.QueueSize),
		async.WithAttemptTimeout(cfg.Oracle.Timeout+10*time.Second),
	)
	engine.SetRetrier(queue)

	sweeper := async.NewSweeper(expenditureRepo, queue, cfg.Retry.SweepInterval, logger)
	go sweeper.Run(ctx)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}

	directory := auth.NewJWTDirectory(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(auth.UnaryServerInterceptor(directory, logger)))

	exporter := export.NewService(expenditureRepo, projectRepo, logger)
	svc.RegisterExpenditureServiceServer(grpcServer, svc.NewExpenditureServer(engine, projectService, exporter, logger))

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(svc.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	logger.Info("triplelockd listening",
		"addr", cfg.Server.GRPCAddr,
		"db_driver", cfg.Database.Driver,
		"threshold", cfg.Policy.VerificationThreshold,
		"required_quorum", cfg.Policy.RequiredQuorum,
	)
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()
	grpcServer.GracefulStop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	queue.Shutdown(shutdownCtx)
	bus.Shutdown(shutdownCtx)
}
