// Package core holds the expenditure state machine. Engine is the only
// component that writes an expenditure's status; every other package reports
// to it and it decides which transition, if any, applies.
package core

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/payments"
	"github.com/joseph-ayodele/triplelock/internal/repository"
	"github.com/joseph-ayodele/triplelock/internal/verification"
)

// ProjectLookup resolves project ids on creation.
type ProjectLookup interface {
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
}

// VerificationRetrier schedules a later verification attempt for an
// expenditure whose oracle call failed transiently.
type VerificationRetrier interface {
	ScheduleVerification(ctx context.Context, expenditureID uuid.UUID)
}

type Engine struct {
	expenditures   repository.ExpenditureRepository
	projects       ProjectLookup
	gate           *verification.Gate
	rail           payments.Rail
	publisher      events.Publisher
	retrier        VerificationRetrier
	locks          *keyedLocker
	now            func() time.Time
	requiredQuorum int
	logger         *slog.Logger
}

type Option func(*Engine)

func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithClock replaces the server clock used for every timestamp the engine
// assigns.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithRequiredQuorum(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.requiredQuorum = n
		}
	}
}

func WithRetrier(r VerificationRetrier) Option {
	return func(e *Engine) { e.retrier = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(
	expenditures repository.ExpenditureRepository,
	projects ProjectLookup,
	gate *verification.Gate,
	rail payments.Rail,
	opts ...Option,
) *Engine {
	e := &Engine{
		expenditures:   expenditures,
		projects:       projects,
		gate:           gate,
		rail:           rail,
		publisher:      events.Nop{},
		locks:          newKeyedLocker(),
		now:            func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
		requiredQuorum: constants.DefaultRequiredQuorum,
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetRetrier wires the retry queue after construction; the queue itself
// needs the engine.
func (e *Engine) SetRetrier(r VerificationRetrier) { e.retrier = r }

// RequiredQuorum is the approval count given to new expenditures.
func (e *Engine) RequiredQuorum() int { return e.requiredQuorum }

func requireActor(actor entity.Actor) error {
	if actor.ID == "" {
		return common.NewUnauthorizedError("missing authenticated actor")
	}
	return nil
}

func requireAdmin(exp *entity.Expenditure, actor entity.Actor, op string) error {
	if actor.Role.CanAdminister() {
		return nil
	}
	return common.NewUnauthorizedError(op+" requires the ngo or admin role").
		WithExpenditure(exp.ID.String(), exp.Status.String())
}

// load fetches the expenditure; callers hold its lock.
func (e *Engine) load(ctx context.Context, id uuid.UUID) (*entity.Expenditure, error) {
	exp, err := e.expenditures.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return exp, nil
}

// commit persists m and publishes its events once the write is durable.
func (e *Engine) commit(ctx context.Context, m repository.Mutation) error {
	stored, err := e.expenditures.Apply(ctx, m)
	if err != nil {
		return err
	}
	e.publisher.Publish(stored...)
	return nil
}

func (e *Engine) event(id uuid.UUID, typ constants.EventType, actorID string, from, to constants.ExpenditureStatus, payload any, at time.Time) (entity.Event, error) {
	ev, err := events.New(id, typ, actorID, from, to, payload, at)
	if err != nil {
		return entity.Event{}, common.NewAppError("INTERNAL", "build event", common.ErrInternal, err)
	}
	return ev, nil
}
