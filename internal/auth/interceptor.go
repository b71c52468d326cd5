package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/joseph-ayodele/triplelock/internal/common"
)

// publicPrefixes are served without credentials.
var publicPrefixes = []string{
	"/grpc.health.v1.Health/",
	"/grpc.reflection.",
}

func isPublic(method string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(method, p) {
			return true
		}
	}
	return false
}

// bearerToken extracts the token from "authorization: Bearer <token>".
func bearerToken(md metadata.MD) string {
	for _, v := range md.Get("authorization") {
		parts := strings.SplitN(v, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	return ""
}

// UnaryServerInterceptor resolves the bearer token through dir and stores
// the actor and a request id on the context.
func UnaryServerInterceptor(dir ActorDirectory, logger *slog.Logger) grpc.UnaryServerInterceptor {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)

		reqID := ""
		if v := md.Get("x-request-id"); len(v) > 0 {
			reqID = v[0]
		}
		if reqID == "" {
			reqID = uuid.New().String()
		}
		ctx = common.WithRequestID(ctx, reqID)

		if isPublic(info.FullMethod) {
			return handler(ctx, req)
		}

		token := bearerToken(md)
		if token == "" {
			logger.Warn("auth.missing_token", "method", info.FullMethod, "req_id", reqID)
			return nil, common.UnauthenticatedError("missing bearer token")
		}
		actor, err := dir.Resolve(ctx, token)
		if err != nil {
			logger.Warn("auth.invalid_token", "method", info.FullMethod, "req_id", reqID, "error", err)
			return nil, common.UnauthenticatedError("invalid bearer token")
		}
		return handler(common.WithActor(ctx, actor), req)
	}
}
