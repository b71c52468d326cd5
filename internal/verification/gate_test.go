package verification

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/oracle"
)

var fixed = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)

func submitted() *entity.Expenditure {
	vendor := "v1"
	return &entity.Expenditure{
		ID:       uuid.New(),
		VendorID: &vendor,
		Status:   constants.StatusVendorSubmitted,
		VendorProof: &entity.VendorProof{
			VendorID: vendor,
			Images:   []string{"a.jpg"},
		},
	}
}

func fixedOracle(score float64, anomalies ...string) oracle.Analyzer {
	return oracle.AnalyzerFunc(func(ctx context.Context, ev oracle.Evidence) (oracle.Analysis, error) {
		return oracle.Analysis{Authenticity: score, Anomalies: anomalies}, nil
	})
}

func newGate(a oracle.Analyzer, timeout time.Duration) *Gate {
	return NewGate(a, Policy{Threshold: 0.85, Timeout: timeout}, func() time.Time { return fixed }, nil)
}

func TestVerified(t *testing.T) {
	require.True(t, Verified(oracle.Analysis{Authenticity: 0.85}, 0.85))
	require.True(t, Verified(oracle.Analysis{Authenticity: 0.95, Anomalies: []string{}}, 0.85))
	require.False(t, Verified(oracle.Analysis{Authenticity: 0.84}, 0.85))
	require.False(t, Verified(oracle.Analysis{Authenticity: 0.99, Anomalies: []string{"font"}}, 0.85))
}

func TestEvaluatePass(t *testing.T) {
	v, err := newGate(fixedOracle(0.95), time.Second).Evaluate(context.Background(), submitted())
	require.NoError(t, err)
	require.True(t, v.Verified)
	require.Equal(t, 0.85, v.Threshold)
	require.Equal(t, fixed, v.VerifiedAt)
	require.NotNil(t, v.Anomalies)
	require.JSONEq(t, `{"authenticity":0.95,"anomalies":[]}`, string(v.Raw))
}

func TestEvaluateFailVerdictIsRecorded(t *testing.T) {
	v, err := newGate(fixedOracle(0.5, "blurred image"), time.Second).Evaluate(context.Background(), submitted())
	require.NoError(t, err)
	require.False(t, v.Verified)
	require.Equal(t, []string{"blurred image"}, v.Anomalies)
}

func TestEvaluateOracleErrorIsTransient(t *testing.T) {
	failing := oracle.AnalyzerFunc(func(ctx context.Context, ev oracle.Evidence) (oracle.Analysis, error) {
		return oracle.Analysis{}, errors.New("connection refused")
	})
	exp := submitted()
	_, err := newGate(failing, time.Second).Evaluate(context.Background(), exp)
	require.ErrorIs(t, err, common.ErrTransientDependency)
	require.True(t, common.IsRetryable(err))
	require.Contains(t, err.Error(), exp.ID.String())
}

func TestEvaluateTimeout(t *testing.T) {
	slow := oracle.AnalyzerFunc(func(ctx context.Context, ev oracle.Evidence) (oracle.Analysis, error) {
		<-ctx.Done()
		return oracle.Analysis{}, ctx.Err()
	})
	_, err := newGate(slow, 20*time.Millisecond).Evaluate(context.Background(), submitted())
	require.ErrorIs(t, err, common.ErrTransientDependency)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Contains(t, err.Error(), "timed out")
}

func TestEvaluateOutOfRangeScore(t *testing.T) {
	for _, score := range []float64{-0.1, 1.5, math.NaN()} {
		_, err := newGate(fixedOracle(score), time.Second).Evaluate(context.Background(), submitted())
		require.ErrorIs(t, err, common.ErrTransientDependency)
	}
}

func TestEvaluateWithoutProof(t *testing.T) {
	exp := submitted()
	exp.VendorProof = nil
	_, err := newGate(fixedOracle(0.9), time.Second).Evaluate(context.Background(), exp)
	require.ErrorIs(t, err, common.ErrInvalidState)
}
