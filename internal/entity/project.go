package entity

import (
	"time"

	"github.com/google/uuid"
)

// Project represents a project for data transfer between layers.
type Project struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	NGOID     string    `json:"ngo_id"`
	CreatedAt time.Time `json:"created_at"`
}
