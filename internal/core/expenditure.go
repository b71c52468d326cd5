package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

const (
	maxDescriptionLength = 2000
	maxCategoryLength    = 128
	maxActorIDLength     = 128
	maxReasonLength      = 1000
)

type CreateExpenditureInput struct {
	ProjectID   uuid.UUID
	VendorID    string // optional; can be assigned later
	Amount      decimal.Decimal
	Description string
	Category    string
}

// CreateExpenditure records a new expenditure in pending.
func (e *Engine) CreateExpenditure(ctx context.Context, actor entity.Actor, in CreateExpenditureInput) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if !actor.Role.CanAdminister() {
		return nil, common.NewUnauthorizedError("creating an expenditure requires the ngo or admin role")
	}
	if err := common.NewValidator().
		Field("amount", in.Amount, common.PositiveAmount).
		Field("category", in.Category, common.Required, common.MaxLength(maxCategoryLength)).
		Field("description", in.Description, common.MaxLength(maxDescriptionLength)).
		Field("vendor_id", in.VendorID, common.MaxLength(maxActorIDLength)).
		Err(); err != nil {
		return nil, err
	}
	if in.ProjectID == uuid.Nil {
		return nil, common.NewValidationError("field 'project_id': is required")
	}

	ok, err := e.projects.Exists(ctx, in.ProjectID)
	if err != nil {
		return nil, common.WrapError(err, "resolve project")
	}
	if !ok {
		return nil, common.NewNotFoundError(fmt.Sprintf("project %s not found", in.ProjectID))
	}

	category := strings.TrimSpace(in.Category)
	if c, known := constants.Canonicalize(category); known {
		category = string(c)
	}

	now := e.now()
	exp := &entity.Expenditure{
		ID:          uuid.New(),
		ProjectID:   in.ProjectID,
		Amount:      in.Amount,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Status:      constants.StatusPending,
		CreatedBy:   actor.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
		Version:     1,
		Quorum:      entity.QuorumState{Required: e.requiredQuorum},
	}
	if v := strings.TrimSpace(in.VendorID); v != "" {
		exp.VendorID = &v
	}

	ev, err := e.event(exp.ID, constants.EventExpenditureCreated, actor.ID, "", exp.Status, events.ExpenditureCreated{
		ProjectID:      exp.ProjectID,
		VendorID:       in.VendorID,
		Amount:         exp.Amount.StringFixed(2),
		Category:       exp.Category,
		RequiredQuorum: exp.Quorum.Required,
	}, now)
	if err != nil {
		return nil, err
	}
	stored, err := e.expenditures.Create(ctx, exp, []entity.Event{ev})
	if err != nil {
		return nil, common.WrapError(err, "create expenditure")
	}
	e.publisher.Publish(stored...)

	e.logger.Info("engine.create",
		"expenditure_id", exp.ID,
		"project_id", exp.ProjectID,
		"amount", exp.Amount.StringFixed(2),
		"category", exp.Category,
		"actor_id", actor.ID,
	)
	return exp, nil
}

// AssignVendor sets or replaces the vendor while the expenditure is pending.
// Assigning the vendor already on record changes nothing and emits nothing.
func (e *Engine) AssignVendor(ctx context.Context, actor entity.Actor, id uuid.UUID, vendorID string) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	vendorID = strings.TrimSpace(vendorID)
	if err := common.NewValidator().
		Field("vendor_id", vendorID, common.Required, common.MaxLength(maxActorIDLength)).
		Err(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cur, actor, "assigning a vendor"); err != nil {
		return nil, err
	}
	if err := requireStatus(cur, "vendor assignment", constants.StatusPending); err != nil {
		return nil, err
	}
	if cur.VendorIs(vendorID) {
		return cur, nil
	}

	now := e.now()
	next := cur.Clone()
	next.VendorID = &vendorID
	next.UpdatedAt = now

	payload := events.VendorAssigned{VendorID: vendorID}
	if cur.VendorID != nil {
		payload.PreviousVendorID = *cur.VendorID
	}
	ev, err := e.event(id, constants.EventVendorAssigned, actor.ID, cur.Status, next.Status, payload, now)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, repository.Mutation{Expenditure: next, ExpectedVersion: cur.Version, Events: []entity.Event{ev}}); err != nil {
		return nil, err
	}
	e.logger.Info("engine.assign_vendor", "expenditure_id", id, "vendor_id", vendorID, "actor_id", actor.ID)
	return next, nil
}

// RejectExpenditure is the administrative escape to rejected from any
// non-terminal state.
func (e *Engine) RejectExpenditure(ctx context.Context, actor entity.Actor, id uuid.UUID, reason string) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if err := common.NewValidator().
		Field("reason", reason, common.Required, common.MaxLength(maxReasonLength)).
		Err(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cur, actor, "rejecting an expenditure"); err != nil {
		return nil, err
	}
	if cur.Status.IsTerminal() {
		return nil, common.NewInvalidStateError("expenditure is already terminal").
			WithExpenditure(id.String(), cur.Status.String())
	}

	now := e.now()
	next := cur.Clone()
	next.UpdatedAt = now
	if err := transition(next, constants.StatusRejected); err != nil {
		return nil, err
	}
	ev, err := e.event(id, constants.EventExpenditureRejected, actor.ID, cur.Status, next.Status, events.ExpenditureRejected{
		Reason: reason,
		Source: events.RejectionSourceAdministrative,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, repository.Mutation{Expenditure: next, ExpectedVersion: cur.Version, Events: []entity.Event{ev}}); err != nil {
		return nil, err
	}
	e.logger.Warn("engine.reject",
		"expenditure_id", id, "from", cur.Status, "reason", reason, "actor_id", actor.ID)
	return next, nil
}

// GetExpenditure returns the full aggregate.
func (e *Engine) GetExpenditure(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	return e.expenditures.Get(ctx, id)
}

func (e *Engine) ListExpenditures(ctx context.Context, actor entity.Actor, filter repository.ExpenditureFilter) ([]*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, common.NewValidationError(fmt.Sprintf("field 'status': unknown status %q", filter.Status))
	}
	return e.expenditures.List(ctx, filter)
}

// ListEvents returns the expenditure's event log, which is also its audit
// trail, in commit order.
func (e *Engine) ListEvents(ctx context.Context, actor entity.Actor, id uuid.UUID) ([]entity.Event, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if _, err := e.expenditures.Get(ctx, id); err != nil {
		return nil, err
	}
	return e.expenditures.ListEvents(ctx, id)
}
