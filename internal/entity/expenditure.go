package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/triplelock/constants"
)

// Expenditure is the aggregate root: header fields plus the verification
// sub-records it owns. Status is the only authoritative lifecycle field.
type Expenditure struct {
	ID              uuid.UUID                   `json:"id"`
	ProjectID       uuid.UUID                   `json:"project_id"`
	VendorID        *string                     `json:"vendor_id,omitempty"`
	Amount          decimal.Decimal             `json:"amount"`
	Description     string                      `json:"description"`
	Category        string                      `json:"category"`
	Status          constants.ExpenditureStatus `json:"status"`
	CreatedBy       string                      `json:"created_by"`
	CreatedAt       time.Time                   `json:"created_at"`
	UpdatedAt       time.Time                   `json:"updated_at"`
	Version         int                         `json:"version"`
	Quorum          QuorumState                 `json:"quorum"`
	QuorumReachedAt *time.Time                  `json:"quorum_reached_at,omitempty"`

	VendorProof    *VendorProof      `json:"vendor_proof,omitempty"`
	AIVerification *AIVerification   `json:"ai_verification,omitempty"`
	Votes          []BeneficiaryVote `json:"votes,omitempty"`
	Release        *Release          `json:"release,omitempty"`
}

// HasVendor reports whether a vendor has been assigned.
func (e *Expenditure) HasVendor() bool {
	return e.VendorID != nil && *e.VendorID != ""
}

// VendorIs reports whether actorID is the assigned vendor.
func (e *Expenditure) VendorIs(actorID string) bool {
	return e.HasVendor() && *e.VendorID == actorID
}

// Clone returns a deep copy so callers can mutate without aliasing the original.
func (e *Expenditure) Clone() *Expenditure {
	if e == nil {
		return nil
	}
	c := *e
	if e.VendorID != nil {
		v := *e.VendorID
		c.VendorID = &v
	}
	if e.QuorumReachedAt != nil {
		t := *e.QuorumReachedAt
		c.QuorumReachedAt = &t
	}
	if e.VendorProof != nil {
		p := *e.VendorProof
		p.Images = append([]string(nil), e.VendorProof.Images...)
		c.VendorProof = &p
	}
	if e.AIVerification != nil {
		v := *e.AIVerification
		v.Anomalies = append([]string(nil), e.AIVerification.Anomalies...)
		v.Raw = append([]byte(nil), e.AIVerification.Raw...)
		c.AIVerification = &v
	}
	if e.Votes != nil {
		c.Votes = make([]BeneficiaryVote, len(e.Votes))
		for i, v := range e.Votes {
			c.Votes[i] = v.clone()
		}
	}
	if e.Release != nil {
		r := *e.Release
		c.Release = &r
	}
	return &c
}

// Release records a successful transfer.
type Release struct {
	ReceiptID  string    `json:"receipt_id"`
	ReleasedBy string    `json:"released_by"`
	ReleasedAt time.Time `json:"released_at"`
}
