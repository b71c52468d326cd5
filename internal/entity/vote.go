package entity

import "time"

// BeneficiaryVote is one beneficiary's attestation. At most one per
// (expenditure, beneficiary); a recast replaces the previous vote.
type BeneficiaryVote struct {
	BeneficiaryID string    `json:"beneficiary_id"`
	Approved      bool      `json:"approved"`
	Feedback      *string   `json:"feedback,omitempty"`
	CastAt        time.Time `json:"cast_at"`  // first vote, keeps ordering stable
	VotedAt       time.Time `json:"voted_at"` // latest vote
}

func (v BeneficiaryVote) clone() BeneficiaryVote {
	if v.Feedback != nil {
		f := *v.Feedback
		v.Feedback = &f
	}
	return v
}

// QuorumState is derived from the vote set; never edited by hand.
type QuorumState struct {
	Required int  `json:"required"`
	Current  int  `json:"current"`
	Achieved bool `json:"achieved"`
}
