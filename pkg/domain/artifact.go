package domain

import "time"

// Artifact is a finished itinerary document recorded in a session's history.
type Artifact struct {
	Index     int       `json:"index"`
	RunID     string    `json:"run_id"`
	Query     string    `json:"query"`
	Document  string    `json:"document,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
