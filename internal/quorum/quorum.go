// Package quorum collects beneficiary votes and tallies them against the
// expenditure's required approval count.
package quorum

import (
	"time"

	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// Ballot is an incoming vote before it is stamped by the engine clock.
type Ballot struct {
	BeneficiaryID string
	Approved      bool
	Feedback      *string
}

// Upsert returns a new vote slice with b recorded at now. A repeat ballot
// replaces the beneficiary's previous vote in place and keeps its original
// cast time. The input slice is not modified.
func Upsert(votes []entity.BeneficiaryVote, b Ballot, now time.Time) ([]entity.BeneficiaryVote, entity.BeneficiaryVote, bool) {
	out := make([]entity.BeneficiaryVote, len(votes), len(votes)+1)
	copy(out, votes)

	for i, v := range out {
		if v.BeneficiaryID != b.BeneficiaryID {
			continue
		}
		v.Approved = b.Approved
		v.Feedback = b.Feedback
		v.VotedAt = now
		out[i] = v
		return out, v, true
	}

	v := entity.BeneficiaryVote{
		BeneficiaryID: b.BeneficiaryID,
		Approved:      b.Approved,
		Feedback:      b.Feedback,
		CastAt:        now,
		VotedAt:       now,
	}
	return append(out, v), v, false
}

// Tally recomputes the quorum state purely from the vote set. Only unique
// beneficiaries count.
func Tally(votes []entity.BeneficiaryVote, required int) entity.QuorumState {
	seen := make(map[string]bool, len(votes))
	current := 0
	for _, v := range votes {
		if seen[v.BeneficiaryID] {
			continue
		}
		seen[v.BeneficiaryID] = true
		if v.Approved {
			current++
		}
	}
	return entity.QuorumState{
		Required: required,
		Current:  current,
		Achieved: required > 0 && current >= required,
	}
}
