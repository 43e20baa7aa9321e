package model

import "time"

// RecomputeRequest asks for a player's totals to be rebuilt.
type RecomputeRequest struct {
	PlayerID    string
	Reason      string
	RequestedAt time.Time
}

// Checkpoint records how far a long-running sweep got.
type Checkpoint struct {
	Phase     string    `json:"phase"`
	Cursor    string    `json:"cursor"`
	Done      int       `json:"done"`
	UpdatedAt time.Time `json:"updated_at"`
}
