package async

import (
	"context"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

// StuckLister finds expenditures by filter. repository.ExpenditureRepository
// satisfies it.
type StuckLister interface {
	List(ctx context.Context, filter repository.ExpenditureFilter) ([]*entity.Expenditure, error)
}

// Sweeper periodically enqueues every expenditure still waiting on
// verification, which covers retries lost to a restart or a full queue.
type Sweeper struct {
	lister   StuckLister
	queue    Queue
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewSweeper(lister StuckLister, queue Queue, interval time.Duration, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{lister: lister, queue: queue, interval: interval, batch: 500, logger: logger}
}

// SweepOnce enqueues the current backlog and returns how many jobs were accepted.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	stuck, err := s.lister.List(ctx, repository.ExpenditureFilter{
		Status: constants.StatusVendorSubmitted,
		Limit:  s.batch,
	})
	if err != nil {
		return 0, err
	}
	n := 0
	for _, exp := range stuck {
		if err := s.queue.Enqueue(ctx, Job{ExpenditureID: exp.ID, Attempt: 1}); err != nil {
			s.logger.Warn("sweeper.enqueue_failed", "expenditure_id", exp.ID, "error", err)
			continue
		}
		n++
	}
	if len(stuck) > 0 {
		s.logger.Info("sweeper.pass", "found", len(stuck), "enqueued", n)
	}
	return n, nil
}

// Run sweeps immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("sweeper.list_failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
