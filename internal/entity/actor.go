package entity

import "github.com/joseph-ayodele/triplelock/constants"

// Actor is the authenticated identity behind every engine call.
type Actor struct {
	ID   string         `json:"id"`
	Role constants.Role `json:"role"`
}
