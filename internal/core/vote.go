package core

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/common"
	"github.com/joseph-ayodele/triplelock/internal/entity"
	"github.com/joseph-ayodele/triplelock/internal/events"
	"github.com/joseph-ayodele/triplelock/internal/quorum"
	"github.com/joseph-ayodele/triplelock/internal/repository"
)

const maxFeedbackLength = 2000

// SubmitBeneficiaryVote records or replaces the actor's vote and recomputes
// the quorum. Reaching quorum moves ai_verified to beneficiary_approved; that
// move is never undone by later votes even though the counters keep
// following the tally.
func (e *Engine) SubmitBeneficiaryVote(ctx context.Context, actor entity.Actor, id uuid.UUID, approved bool, feedback *string) (*entity.Expenditure, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if feedback != nil {
		f := strings.TrimSpace(*feedback)
		if f == "" {
			feedback = nil
		} else {
			feedback = &f
		}
	}
	if err := common.NewValidator().
		Field("feedback", feedback, common.MaxLength(maxFeedbackLength)).
		Err(); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	cur, err := e.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != constants.RoleBeneficiary {
		return nil, common.NewUnauthorizedError("voting requires the beneficiary role").
			WithExpenditure(id.String(), cur.Status.String())
	}
	if err := requireStatus(cur, "voting", constants.StatusAIVerified, constants.StatusBeneficiaryApproved); err != nil {
		return nil, err
	}

	now := e.now()
	next := cur.Clone()
	next.UpdatedAt = now
	votes, vote, replaced := quorum.Upsert(cur.Votes, quorum.Ballot{
		BeneficiaryID: actor.ID,
		Approved:      approved,
		Feedback:      feedback,
	}, now)
	next.Votes = votes
	next.Quorum = quorum.Tally(votes, cur.Quorum.Required)

	evs := make([]entity.Event, 0, 2)
	ev, err := e.event(id, constants.EventBeneficiaryVoteRecorded, actor.ID, cur.Status, cur.Status, events.BeneficiaryVoteRecorded{
		BeneficiaryID: actor.ID,
		Approved:      approved,
		Replaced:      replaced,
		Current:       next.Quorum.Current,
		Required:      next.Quorum.Required,
		Achieved:      next.Quorum.Achieved,
	}, now)
	if err != nil {
		return nil, err
	}
	evs = append(evs, ev)

	if next.Quorum.Achieved && cur.Status == constants.StatusAIVerified {
		if err := transition(next, constants.StatusBeneficiaryApproved); err != nil {
			return nil, err
		}
		reached := now
		next.QuorumReachedAt = &reached
		qev, err := e.event(id, constants.EventQuorumAchieved, actor.ID, cur.Status, next.Status, events.QuorumAchieved{
			Current:  next.Quorum.Current,
			Required: next.Quorum.Required,
		}, now)
		if err != nil {
			return nil, err
		}
		evs = append(evs, qev)
	}

	if err := e.commit(ctx, repository.Mutation{
		Expenditure:     next,
		ExpectedVersion: cur.Version,
		Vote:            &vote,
		Events:          evs,
	}); err != nil {
		return nil, err
	}
	e.logger.Info("engine.vote.recorded",
		"expenditure_id", id,
		"beneficiary_id", actor.ID,
		"approved", approved,
		"replaced", replaced,
		"current", next.Quorum.Current,
		"required", next.Quorum.Required,
		"status", next.Status,
	)
	return next, nil
}
