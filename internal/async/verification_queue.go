package async

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// ErrQueueClosed is returned by Enqueue after Shutdown.
var ErrQueueClosed = errors.New("queue is shutting down")

// ErrQueueFull is returned when the buffer is full. The sweeper picks the
// expenditure up on its next pass.
var ErrQueueFull = errors.New("queue is full")

// Verifier re-runs the verification gate for one expenditure.
type Verifier interface {
	RunVerification(ctx context.Context, id uuid.UUID) (*entity.Expenditure, error)
}

type VerificationQueue struct {
	verifier    Verifier
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	mu      sync.Mutex
	closed  bool
	pending map[uuid.UUID]struct{}
	timers  map[uuid.UUID]*time.Timer
}

type Option func(*VerificationQueue)

func WithWorkers(n int) Option {
	return func(q *VerificationQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *VerificationQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithAttemptTimeout(d time.Duration) Option {
	return func(q *VerificationQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithRetryPolicy bounds the automatic retries of a transient failure. The
// delay doubles on every attempt.
func WithRetryPolicy(maxAttempts int, backoff time.Duration) Option {
	return func(q *VerificationQueue) {
		if maxAttempts > 0 {
			q.maxAttempts = maxAttempts
		}
		if backoff > 0 {
			q.backoff = backoff
		}
	}
}

func NewVerificationQueue(verifier Verifier, logger *slog.Logger, opts ...Option) *VerificationQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &VerificationQueue{
		verifier:    verifier,
		logger:      logger,
		workers:     2,
		timeout:     time.Minute,
		maxAttempts: 5,
		backoff:     2 * time.Second,
		ch:          make(chan Job, 128),
		pending:     make(map[uuid.UUID]struct{}),
		timers:      make(map[uuid.UUID]*time.Timer),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *VerificationQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("retry.worker.started", "worker_id", workerID)
				for job := range q.ch {
					q.run(workerID, job)
				}
				q.logger.Debug("retry.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *VerificationQueue) run(workerID int, job Job) {
	q.mu.Lock()
	delete(q.pending, job.ExpenditureID)
	q.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
	if job.TraceID != "" {
		ctx = common.WithRequestID(ctx, job.TraceID)
	}
	start := time.Now()
	exp, err := q.verifier.RunVerification(ctx, job.ExpenditureID)
	cancel()

	switch {
	case err == nil:
		q.logger.Info("retry.verification.applied",
			"worker_id", workerID,
			"expenditure_id", job.ExpenditureID,
			"status", exp.Status,
			"attempt", job.Attempt,
			"elapsed_ms", time.Since(start).Milliseconds())
	case errors.Is(err, common.ErrTransientDependency) || errors.Is(err, common.ErrConflict):
		q.logger.Warn("retry.verification.transient",
			"worker_id", workerID, "expenditure_id", job.ExpenditureID, "attempt", job.Attempt, "error", err)
		q.retryLater(job)
	default:
		// Moved on (already verified, rejected or gone); nothing to retry.
		q.logger.Info("retry.verification.dropped",
			"worker_id", workerID, "expenditure_id", job.ExpenditureID, "error", err)
	}
}

func (q *VerificationQueue) retryLater(job Job) {
	if job.Attempt >= q.maxAttempts {
		q.logger.Error("retry.verification.exhausted", "expenditure_id", job.ExpenditureID, "attempts", job.Attempt)
		return
	}
	delay := q.backoff << (job.Attempt - 1)
	next := job
	next.Attempt++

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	if _, ok := q.timers[job.ExpenditureID]; ok {
		return
	}
	q.timers[job.ExpenditureID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, next.ExpenditureID)
		q.mu.Unlock()
		if err := q.Enqueue(context.Background(), next); err != nil && !errors.Is(err, ErrQueueClosed) {
			q.logger.Warn("retry.verification.requeue_failed", "expenditure_id", next.ExpenditureID, "error", err)
		}
	})
}

// Enqueue never blocks. A job already waiting for the same expenditure is
// not queued twice.
func (q *VerificationQueue) Enqueue(_ context.Context, job Job) error {
	if job.Attempt < 1 {
		job.Attempt = 1
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("retry.enqueue.closed", "expenditure_id", job.ExpenditureID)
		return ErrQueueClosed
	}
	if _, ok := q.pending[job.ExpenditureID]; ok {
		return nil
	}
	select {
	case q.ch <- job:
		q.pending[job.ExpenditureID] = struct{}{}
		q.logger.Debug("retry.enqueued", "expenditure_id", job.ExpenditureID, "attempt", job.Attempt)
		return nil
	default:
		q.logger.Warn("retry.enqueue.full", "expenditure_id", job.ExpenditureID)
		return ErrQueueFull
	}
}

// ScheduleVerification lets the engine hand over a transient failure.
func (q *VerificationQueue) ScheduleVerification(ctx context.Context, id uuid.UUID) {
	job := Job{ExpenditureID: id, Attempt: 1, TraceID: common.RequestIDFromContext(ctx)}
	// The first attempt just failed; wait before the next one.
	q.retryLater(job)
}

// Pending reports the number of jobs buffered or waiting on a backoff timer.
func (q *VerificationQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.timers)
}

func (q *VerificationQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("retry.shutdown.interrupted")
	case <-done:
		q.logger.Info("retry.shutdown.drained")
	}
}
