package core

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/proof"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

// SubmitVendorProof attaches the assigned vendor's evidence, moves the
// expenditure to vendor_submitted and runs verification straight away.
//
// If the oracle fails the proof stays recorded: the expenditure is returned
// in vendor_submitted together with a TransientDependency error, and a retry
// is scheduled when a retrier is configured.
func (e *Engine) SubmitVendorProof(ctx context.Context, actor entity.Actor, id uuid.UUID, sub proof.Submission) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := proof.Validate(sub); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := proof.Authorize(cur, actor); err != nil {
		e.logger.Warn("engine.proof.unauthorized", "expenditure_id", id, "actor_id", actor.ID)
		return nil, err
	}
	if err := requireStatus(cur, "proof submission", constants.StatusPending); err != nil {
		return nil, err
	}

	now := e.now()
	p := proof.Build(sub, actor.ID, now)
	next := cur.Clone()
	next.VendorProof = p
	next.UpdatedAt = now
	if err := transition(next, constants.StatusVendorSubmitted); err != nil {
		return nil, err
	}
	ev, err := e.event(id, constants.EventVendorProofSubmitted, actor.ID, cur.Status, next.Status, events.VendorProofSubmitted{
		VendorID: actor.ID,
		Images:   len(p.Images),
		Location: p.Location,
	}, now)
	if err != nil {
		return nil, err
	}
	if err := e.commit(ctx, repository.Mutation{Expenditure: next, ExpectedVersion: cur.Version, Proof: p, Events: []entity.Event{ev}}); err != nil {
		return nil, err
	}
	e.logger.Info("engine.proof.submitted", "expenditure_id", id, "vendor_id", actor.ID, "images", len(p.Images))

	verified, err := e.verifyLocked(ctx, next, actor.ID)
	if err != nil {
		if errors.Is(err, common.ErrTransientDependency) {
			e.scheduleRetry(ctx, id)
			return next, err
		}
		return nil, err
	}
	return verified, nil
}

// RunVerification re-runs the verification gate for an expenditure stuck in
// vendor_submitted. It is the entry point for the retry queue and carries no
// actor.
func (e *Engine) RunVerification(ctx context.Context, id uuid.UUID) (*entity.Expenditure, error) {
	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireStatus(cur, "verification", constants.StatusVendorSubmitted); err != nil {
		return nil, err
	}
	return e.verifyLocked(ctx, cur, "")
}

// RetryVerification is the administrative trigger for RunVerification.
func (e *Engine) RetryVerification(ctx context.Context, actor entity.Actor, id uuid.UUID) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cur, actor, "retrying verification"); err != nil {
		return nil, err
	}
	if err := requireStatus(cur, "verification", constants.StatusVendorSubmitted); err != nil {
		return nil, err
	}
	return e.verifyLocked(ctx, cur, actor.ID)
}

// verifyLocked calls the oracle while holding only cur's lock and applies
// the verdict. On oracle failure nothing is written.
func (e *Engine) verifyLocked(ctx context.Context, cur *entity.Expenditure, actorID string) (*entity.Expenditure, error) {
	verdict, err := e.gate.Evaluate(ctx, cur)
	if err != nil {
		e.logger.Warn("engine.verification.deferred",
			"expenditure_id", cur.ID, "status", cur.Status, "error", err)
		return nil, err
	}

	now := e.now()
	next := cur.Clone()
	next.AIVerification = verdict
	next.UpdatedAt = now

	var ev entity.Event
	if verdict.Verified {
		if err := transition(next, constants.StatusAIVerified); err != nil {
			return nil, err
		}
		ev, err = e.event(cur.ID, constants.EventVerificationCompleted, actorID, cur.Status, next.Status, events.VerificationCompleted{
			Authenticity: verdict.Authenticity,
			Anomalies:    verdict.Anomalies,
			Threshold:    verdict.Threshold,
		}, now)
	} else {
		if err := transition(next, constants.StatusRejected); err != nil {
			return nil, err
		}
		score := verdict.Authenticity
		ev, err = e.event(cur.ID, constants.EventExpenditureRejected, actorID, cur.Status, next.Status, events.ExpenditureRejected{
			Reason:       "automated verification failed",
			Source:       events.RejectionSourceVerification,
			Authenticity: &score,
			Anomalies:    verdict.Anomalies,
		}, now)
	}
	if err != nil {
		return nil, err
	}

	if err := e.commit(ctx, repository.Mutation{
		Expenditure:     next,
		ExpectedVersion: cur.Version,
		Verification:    verdict,
		Events:          []entity.Event{ev},
	}); err != nil {
		return nil, err
	}
	e.logger.Info("engine.verification.applied",
		"expenditure_id", cur.ID,
		"verified", verdict.Verified,
		"authenticity", verdict.Authenticity,
		"status", next.Status,
	)
	return next, nil
}

func (e *Engine) scheduleRetry(ctx context.Context, id uuid.UUID) {
	if e.retrier == nil {
		return
	}
	e.retrier.ScheduleVerification(context.WithoutCancel(ctx), id)
}
