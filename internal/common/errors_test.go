package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestAppErrorCarriesContext(t *testing.T) {
	err := NewInvalidStateError("voting is not open").WithExpenditure("exp-1", "pending")

	require.True(t, errors.Is(err, ErrInvalidState))
	require.False(t, errors.Is(err, ErrNotFound))
	require.Contains(t, err.Error(), "expenditure=exp-1")
	require.Contains(t, err.Error(), "status=pending")
	require.Contains(t, err.Error(), "voting is not open")
}

func TestTransientErrorWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := fmt.Errorf("verify: %w", NewTransientError("oracle unavailable", cause))

	require.True(t, errors.Is(err, ErrTransientDependency))
	require.True(t, errors.Is(err, cause))
	require.True(t, IsRetryable(err))
	require.False(t, IsRetryable(NewUnauthorizedError("nope")))
}

func TestGRPCStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{NewNotFoundError("x"), codes.NotFound},
		{NewValidationError("x"), codes.InvalidArgument},
		{NewUnauthorizedError("x"), codes.PermissionDenied},
		{NewInvalidStateError("x"), codes.FailedPrecondition},
		{NewTransientError("x", nil), codes.Unavailable},
		{NewConflictError("x"), codes.Aborted},
		{errors.New("boom"), codes.Internal},
	}
	for _, tc := range cases {
		st, ok := status.FromError(GRPCStatus(tc.err))
		require.True(t, ok)
		require.Equal(t, tc.code, st.Code(), tc.err.Error())
	}
	require.NoError(t, GRPCStatus(nil))
}
