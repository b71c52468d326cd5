package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/joseph-ayodele/triplelock/internal/common"
)

// Config for the HTTP oracle client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration // http client timeout; the gate applies its own deadline as well
}

// Client posts evidence to an analysis endpoint and validates the answer.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

func (c *Client) Analyze(ctx context.Context, ev Evidence) (Analysis, error) {
	start := time.Now()
	c.logger.Info("oracle.analyze.start",
		"expenditure_id", ev.ExpenditureID,
		"images", len(ev.Images),
		"category", ev.Category,
	)

	headers := map[string]string{}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}
	raw, _, err := common.SendJSON(ctx, c.http, c.cfg.URL, ev, headers, c.logger)
	if err != nil {
		c.logger.Error("oracle.analyze.http_error",
			"expenditure_id", ev.ExpenditureID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return Analysis{}, fmt.Errorf("oracle request: %w", err)
	}

	a, err := ParseAnalysis(raw)
	if err != nil {
		c.logger.Error("oracle.analyze.invalid_response",
			"expenditure_id", ev.ExpenditureID, "error", err, "raw_bytes", len(raw),
		)
		return Analysis{}, fmt.Errorf("oracle response: %w", err)
	}

	c.logger.Info("oracle.analyze.done",
		"expenditure_id", ev.ExpenditureID,
		"authenticity", a.Authenticity,
		"anomalies", len(a.Anomalies),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return a, nil
}
