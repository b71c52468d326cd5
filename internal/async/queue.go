package async

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Job asks for one verification attempt.
type Job struct {
	ExpenditureID uuid.UUID
	Attempt       int
	SubmittedAt   time.Time
	TraceID       string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}
