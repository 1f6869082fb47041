package model

import "time"

// Job represents one artist-search execution, from request to terminal status.
type Job struct {
	ID          string     `json:"id"`
	ArtistID    string     `json:"artistId"`
	ArtistName  string     `json:"artistName"`
	Status      JobStatus  `json:"status"`
	Error       *string    `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// JobStatus is the lifecycle state of a search job. Transitions are
// monotonic: searching moves to exactly one of completed or error and
// never back.
type JobStatus string

const (
	JobStatusSearching JobStatus = "searching"
	JobStatusCompleted JobStatus = "completed"
	JobStatusError     JobStatus = "error"
)

// Terminal reports whether no further status transitions can follow.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusError
}

// SearchJobPayload is the asynq task payload for a tree build.
type SearchJobPayload struct {
	JobID      string `json:"jobId"`
	ArtistID   string `json:"artistId"`
	ArtistName string `json:"artistName"`
}
