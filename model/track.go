package model

import "time"

// Track status values. A track starts pending and transitions exactly
// once to completed or failed; both are terminal.
const (
	TrackStatusPending   = "pending"
	TrackStatusCompleted = "completed"
	TrackStatusFailed    = "failed"
)

// Track represents one music-generation job and its outcome.
type Track struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"userId"`
	Title         string    `json:"title"`
	Prompt        string    `json:"prompt"`
	Genre         string    `json:"genre"`
	Status        string    `json:"status"`
	AudioURL      string    `json:"audioUrl,omitempty"`      // data URI or object URL, set when completed
	FailureReason string    `json:"failureReason,omitempty"` // set when failed
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
