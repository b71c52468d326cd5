package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/triplelock/constants"
)

// Event is a persisted state-change notification. The event log doubles as
// the expenditure's audit trail.
type Event struct {
	ID            uuid.UUID                   `json:"id"`
	ExpenditureID uuid.UUID                   `json:"expenditure_id"`
	Seq           int64                       `json:"seq"`
	Type          constants.EventType         `json:"type"`
	ActorID       string                      `json:"actor_id,omitempty"`
	FromStatus    constants.ExpenditureStatus `json:"from_status,omitempty"`
	ToStatus      constants.ExpenditureStatus `json:"to_status"`
	Payload       json.RawMessage             `json:"payload,omitempty"`
	OccurredAt    time.Time                   `json:"occurred_at"`
}
