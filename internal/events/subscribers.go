package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// LogSubscriber writes one structured line per event.
func LogSubscriber(logger *slog.Logger) Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return SubscriberFunc(func(ctx context.Context, ev entity.Event) {
		logger.Info("event",
			"type", ev.Type,
			"event_id", ev.ID,
			"seq", ev.Seq,
			"expenditure_id", ev.ExpenditureID,
			"actor_id", ev.ActorID,
			"from", ev.FromStatus,
			"to", ev.ToStatus,
		)
	})
}

// Recorder keeps every published event in memory. It satisfies both
// Publisher and Subscriber.
type Recorder struct {
	mu     sync.Mutex
	events []entity.Event
}

func (r *Recorder) Publish(events ...entity.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *Recorder) Handle(_ context.Context, ev entity.Event) { r.Publish(ev) }

// Events returns a copy of what was recorded so far.
func (r *Recorder) Events() []entity.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]entity.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = string(ev.Type)
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
