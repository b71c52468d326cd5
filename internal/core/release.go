package core

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/payments"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

// ReleaseFunds pays the vendor and completes the expenditure. A failed
// transfer leaves the status at beneficiary_approved and is surfaced as a
// TransientDependency error, unless the rail refused the payee outright, which
// surfaces as InvalidState. Neither is turned into a rejection. The
// expenditure id is the transfer's idempotency key.
func (e *Engine) ReleaseFunds(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cur, actor, "releasing funds"); err != nil {
		return nil, err
	}
	if err := requireStatus(cur, "fund release", constants.StatusBeneficiaryApproved); err != nil {
		return nil, err
	}
	if !cur.HasVendor() {
		return nil, common.NewInvalidStateError("no vendor to pay").
			WithExpenditure(id.String(), cur.Status.String())
	}

	start := time.Now()
	receipt, err := e.rail.RecordTransfer(ctx, payments.Transfer{
		PayeeID:        *cur.VendorID,
		Amount:         cur.Amount,
		Reference:      id.String(),
		IdempotencyKey: id.String(),
	})
	if err != nil {
		e.logger.Error("engine.release.transfer_failed",
			"expenditure_id", id, "vendor_id", *cur.VendorID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		if errors.Is(err, payments.ErrRejected) {
			return nil, common.NewAppError("TRANSFER_REJECTED", "transfer rail refused the payment", common.ErrInvalidState, err).
				WithExpenditure(id.String(), cur.Status.String())
		}
		return nil, common.NewTransientError("transfer rail failed; release can be retried", err).
			WithExpenditure(id.String(), cur.Status.String())
	}

	now := e.now()
	next := cur.Clone()
	next.UpdatedAt = now
	next.Release = &entity.Release{ReceiptID: receipt.ReceiptID, ReleasedBy: actor.ID, ReleasedAt: now}
	if err := transition(next, constants.StatusCompleted); err != nil {
		return nil, err
	}
	ev, err := e.event(id, constants.EventFundsReleased, actor.ID, cur.Status, next.Status, events.FundsReleased{
		VendorID:  *cur.VendorID,
		Amount:    cur.Amount.StringFixed(2),
		ReceiptID: receipt.ReceiptID,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, repository.Mutation{Expenditure: next, ExpectedVersion: cur.Version, Events: []entity.Event{ev}}); err != nil {
		// The rail has paid; a retried release reuses the idempotency key
		// and gets the same receipt back.
		e.logger.Error("engine.release.persist_failed",
			"expenditure_id", id, "receipt_id", receipt.ReceiptID, "error", err)
		return nil, err
	}
	e.logger.Info("engine.release.completed",
		"expenditure_id", id,
		"vendor_id", *cur.VendorID,
		"amount", cur.Amount.StringFixed(2),
		"receipt_id", receipt.ReceiptID,
		"actor_id", actor.ID,
	)
	return next, nil
}
