package common

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Error taxonomy. AppError unwraps to exactly one of these.
var (
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidState        = errors.New("invalid state")
	ErrTransientDependency = errors.New("transient dependency failure")
	ErrConflict            = errors.New("concurrent update")
	ErrInternal            = errors.New("internal error")
)

// AppError carries enough context for a caller to decide whether to retry,
// correct input or escalate.
type AppError struct {
	Code          string
	Message       string
	ExpenditureID string
	Status        string
	Kind          error
	Cause         error
}

func (e *AppError) Error() string {
	var b strings.Builder
	b.WriteString(e.Code)
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.ExpenditureID != "" {
		fmt.Fprintf(&b, " (expenditure=%s", e.ExpenditureID)
		if e.Status != "" {
			fmt.Fprintf(&b, " status=%s", e.Status)
		}
		b.WriteString(")")
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap exposes both the taxonomy sentinel and the underlying cause.
func (e *AppError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// WithExpenditure attaches the expenditure id and current status.
func (e *AppError) WithExpenditure(id, status string) *AppError {
	e.ExpenditureID = id
	e.Status = status
	return e
}

// Error constructors
func NewAppError(code, message string, kind, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Cause:   cause,
	}
}

func NewValidationError(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, ErrValidation, nil)
}

func NewUnauthorizedError(message string) *AppError {
	return NewAppError("UNAUTHORIZED", message, ErrUnauthorized, nil)
}

func NewInvalidStateError(message string) *AppError {
	return NewAppError("INVALID_STATE", message, ErrInvalidState, nil)
}

func NewNotFoundError(message string) *AppError {
	return NewAppError("NOT_FOUND", message, ErrNotFound, nil)
}

func NewTransientError(message string, cause error) *AppError {
	return NewAppError("TRANSIENT_DEPENDENCY_ERROR", message, ErrTransientDependency, cause)
}

func NewConflictError(message string) *AppError {
	return NewAppError("CONFLICT", message, ErrConflict, nil)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryable reports whether the caller may safely retry the same call.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientDependency) || errors.Is(err, ErrConflict)
}

// GRPCStatus maps an engine error onto a gRPC status error.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, ErrValidation):
		code = codes.InvalidArgument
	case errors.Is(err, ErrUnauthorized):
		code = codes.PermissionDenied
	case errors.Is(err, ErrInvalidState):
		code = codes.FailedPrecondition
	case errors.Is(err, ErrTransientDependency):
		code = codes.Unavailable
	case errors.Is(err, ErrConflict):
		code = codes.Aborted
	}
	return status.Error(code, err.Error())
}

// gRPC error helpers
func InvalidArgumentError(message string) error {
	return status.Error(codes.InvalidArgument, message)
}

func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return InvalidArgumentError(fmt.Sprintf(format, args...))
}

func UnauthenticatedError(message string) error {
	return status.Error(codes.Unauthenticated, message)
}
