// Package events builds the typed domain events the engine emits and
// delivers them to subscribers on a fire-and-forget bus.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
	"github.com/joseph-ayodele/triplelock/internal/entity"
)

// Publisher accepts committed events. Publish never blocks the caller on
// delivery and never fails.
type Publisher interface {
	Publish(events ...entity.Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(...entity.Event) {}

// New builds an event with a fresh id and the JSON-encoded payload.
func New(expenditureID uuid.UUID, typ constants.EventType, actorID string, from, to constants.ExpenditureStatus, payload any, at time.Time) (entity.Event, error) {
	ev := entity.Event{
		ID:            uuid.New(),
		ExpenditureID: expenditureID,
		Type:          typ,
		ActorID:       actorID,
		FromStatus:    from,
		ToStatus:      to,
		OccurredAt:    at,
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return entity.Event{}, fmt.Errorf("encode %s payload: %w", typ, err)
		}
		ev.Payload = b
	}
	return ev, nil
}

type ExpenditureCreated struct {
	ProjectID      uuid.UUID `json:"project_id"`
	VendorID       string    `json:"vendor_id,omitempty"`
	Amount         string    `json:"amount"`
	Category       string    `json:"category"`
	RequiredQuorum int       `json:"required_quorum"`
}

type VendorAssigned struct {
	VendorID         string `json:"vendor_id"`
	PreviousVendorID string `json:"previous_vendor_id,omitempty"`
}

type VendorProofSubmitted struct {
	VendorID string          `json:"vendor_id"`
	Images   int             `json:"images"`
	Location entity.Location `json:"location"`
}

type VerificationCompleted struct {
	Authenticity float64  `json:"authenticity"`
	Anomalies    []string `json:"anomalies"`
	Threshold    float64  `json:"threshold"`
}

type ExpenditureRejected struct {
	Reason       string   `json:"reason"`
	Source       string   `json:"source"` // verification or administrative
	Authenticity *float64 `json:"authenticity,omitempty"`
	Anomalies    []string `json:"anomalies,omitempty"`
}

type BeneficiaryVoteRecorded struct {
	BeneficiaryID string `json:"beneficiary_id"`
	Approved      bool   `json:"approved"`
	Replaced      bool   `json:"replaced"`
	Current       int    `json:"current"`
	Required      int    `json:"required"`
	Achieved      bool   `json:"achieved"`
}

type QuorumAchieved struct {
	Current  int `json:"current"`
	Required int `json:"required"`
}

type FundsReleased struct {
	VendorID  string `json:"vendor_id"`
	Amount    string `json:"amount"`
	ReceiptID string `json:"receipt_id"`
}

const (
	RejectionSourceVerification   = "verification"
	RejectionSourceAdministrative = "administrative"
)
