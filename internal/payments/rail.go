// Package payments is the client side of the external transfer rail.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/triplelock/internal/common"
)

// Transfer is one payout request. IdempotencyKey makes a retried request
// safe: the rail must return the original receipt instead of paying twice.
type Transfer struct {
	PayeeID        string          `json:"payee_id"`
	Amount         decimal.Decimal `json:"amount"`
	Reference      string          `json:"reference"`
	IdempotencyKey string          `json:"-"`
}

type Receipt struct {
	ReceiptID string `json:"receipt_id"`
}

// Rail may fail with a transient error and must never partially apply.
type Rail interface {
	RecordTransfer(ctx context.Context, t Transfer) (Receipt, error)
}

// RailFunc adapts a function to Rail.
type RailFunc func(ctx context.Context, t Transfer) (Receipt, error)

func (f RailFunc) RecordTransfer(ctx context.Context, t Transfer) (Receipt, error) { return f(ctx, t) }

// ErrRejected is returned when the rail refused the transfer outright (4xx).
var ErrRejected = errors.New("transfer rejected by rail")

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, logger: logger}
}

func (c *Client) RecordTransfer(ctx context.Context, t Transfer) (Receipt, error) {
	start := time.Now()
	headers := map[string]string{"Idempotency-Key": t.IdempotencyKey}
	if c.cfg.APIKey != "" {
		headers["Authorization"] = "Bearer " + c.cfg.APIKey
	}

	body := map[string]any{
		"payee_id":  t.PayeeID,
		"amount":    t.Amount.StringFixed(2),
		"reference": t.Reference,
	}
	raw, status, err := common.SendJSON(ctx, c.http, strings.TrimRight(c.cfg.URL, "/")+"/transfers", body, headers, c.logger)
	if err != nil {
		c.logger.Error("payments.transfer.http_error",
			"payee_id", t.PayeeID, "idempotency_key", t.IdempotencyKey, "status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		var se *common.HTTPStatusError
		if errors.As(err, &se) && !se.Temporary() {
			return Receipt{}, fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(string(se.Body)))
		}
		return Receipt{}, fmt.Errorf("transfer request: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(raw, &r); err != nil {
		return Receipt{}, fmt.Errorf("decode transfer receipt: %w", err)
	}
	if r.ReceiptID == "" {
		return Receipt{}, errors.New("transfer receipt without receipt_id")
	}
	c.logger.Info("payments.transfer.recorded",
		"payee_id", t.PayeeID, "receipt_id", r.ReceiptID, "idempotency_key", t.IdempotencyKey,
		"elapsed_ms", time.Since(start).Milliseconds())
	return r, nil
}
