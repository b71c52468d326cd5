// Package verification runs the automated verification gate: it asks the
// analysis oracle about a vendor proof and turns the answer into a verdict.
package verification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/oracle"
)

// Policy holds the verdict threshold and the bound on the oracle call.
type Policy struct {
	Threshold float64
	Timeout   time.Duration
}

// DefaultPolicy returns the stock threshold with a 20s oracle bound.
func DefaultPolicy() Policy {
	return Policy{Threshold: constants.DefaultVerificationThreshold, Timeout: 20 * time.Second}
}

// Gate never changes status; it only reports a verdict or a transient error.
type Gate struct {
	analyzer oracle.Analyzer
	policy   Policy
	now      func() time.Time
	logger   *slog.Logger
}

func NewGate(analyzer oracle.Analyzer, policy Policy, now func() time.Time, logger *slog.Logger) *Gate {
	if policy.Threshold <= 0 {
		policy.Threshold = constants.DefaultVerificationThreshold
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{analyzer: analyzer, policy: policy, now: now, logger: logger}
}

// Policy returns the policy in force.
func (g *Gate) Policy() Policy { return g.policy }

// Verified applies the pass rule to an oracle answer.
func Verified(a oracle.Analysis, threshold float64) bool {
	return a.Authenticity >= threshold && len(a.Anomalies) == 0
}

// Evaluate calls the oracle with the gate's timeout and returns the verdict
// to record. Any oracle failure, including a deadline, comes back as a
// TransientDependency error and no verdict.
func (g *Gate) Evaluate(ctx context.Context, exp *entity.Expenditure) (*entity.AIVerification, error) {
	if exp.VendorProof == nil {
		return nil, common.NewInvalidStateError("no vendor proof to verify").
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}

	callCtx, cancel := common.WithTimeout(ctx, g.policy.Timeout)
	defer cancel()

	start := time.Now()
	a, err := g.analyzer.Analyze(callCtx, oracle.EvidenceFrom(exp))
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		msg := "analysis oracle unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("analysis oracle timed out after %s", g.policy.Timeout)
		}
		g.logger.Warn("verification.oracle_failed",
			"expenditure_id", exp.ID, "error", err, "elapsed_ms", elapsed)
		return nil, common.NewTransientError(msg, err).
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}

	if math.IsNaN(a.Authenticity) || a.Authenticity < 0 || a.Authenticity > 1 {
		g.logger.Warn("verification.score_out_of_range",
			"expenditure_id", exp.ID, "authenticity", a.Authenticity)
		return nil, common.NewTransientError(fmt.Sprintf("analysis oracle returned score %v outside [0,1]", a.Authenticity), nil).
			WithExpenditure(exp.ID.String(), exp.Status.String())
	}

	anomalies := append([]string{}, a.Anomalies...)
	raw := a.Raw
	if len(raw) == 0 {
		raw, err = json.Marshal(map[string]any{"authenticity": a.Authenticity, "anomalies": anomalies})
		if err != nil {
			return nil, fmt.Errorf("encode oracle payload: %w", err)
		}
	}

	v := &entity.AIVerification{
		Raw:          raw,
		Authenticity: a.Authenticity,
		Anomalies:    anomalies,
		Verified:     Verified(a, g.policy.Threshold),
		Threshold:    g.policy.Threshold,
		VerifiedAt:   g.now(),
	}
	g.logger.Info("verification.verdict",
		"expenditure_id", exp.ID,
		"authenticity", v.Authenticity,
		"anomalies", len(v.Anomalies),
		"threshold", v.Threshold,
		"verified", v.Verified,
		"elapsed_ms", elapsed,
	)
	return v, nil
}
