package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// Subscriber receives events from the bus on the bus goroutine.
type Subscriber interface {
	Handle(ctx context.Context, ev entity.Event)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, ev entity.Event)

func (f SubscriberFunc) Handle(ctx context.Context, ev entity.Event) { f(ctx, ev) }

// Bus fans events out to subscribers from a single delivery goroutine, so
// each subscriber sees events in publish order. When the buffer is full the
// event is dropped; the persisted event log stays authoritative.
type Bus struct {
	logger *slog.Logger
	ch     chan entity.Event
	wg     sync.WaitGroup

	mu     sync.RWMutex
	subs   []Subscriber
	closed bool
}

type Option func(*Bus)

func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.ch = make(chan entity.Event, n)
		}
	}
}

func NewBus(logger *slog.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Bus{
		logger: logger,
		ch:     make(chan entity.Event, 256),
	}
	for _, o := range opts {
		o(b)
	}
	b.wg.Add(1)
	go b.run()
	return b
}

func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, s)
}

func (b *Bus) Publish(events ...entity.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("events.publish_after_shutdown", "count", len(events))
		return
	}
	for _, ev := range events {
		select {
		case b.ch <- ev:
		default:
			b.logger.Warn("events.buffer_full_dropped",
				"event_id", ev.ID, "type", ev.Type, "expenditure_id", ev.ExpenditureID)
		}
	}
}

func (b *Bus) run() {
	defer b.wg.Done()
	for ev := range b.ch {
		b.mu.RLock()
		subs := append([]Subscriber(nil), b.subs...)
		b.mu.RUnlock()
		for _, s := range subs {
			b.deliver(s, ev)
		}
	}
}

func (b *Bus) deliver(s Subscriber, ev entity.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("events.subscriber_panic", "event_id", ev.ID, "type", ev.Type, "panic", r)
		}
	}()
	s.Handle(context.Background(), ev)
}

// Shutdown stops accepting events and waits for queued ones to be delivered.
func (b *Bus) Shutdown(ctx context.Context) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	close(b.ch)
	b.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); b.wg.Wait() }()

	select {
	case <-ctx.Done():
		b.logger.Warn("events.shutdown_interrupted")
	case <-done:
		b.logger.Info("events.bus_drained")
	}
}
