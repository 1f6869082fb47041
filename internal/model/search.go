package model

// StartSearchRequest starts a new recommendation search from a seed
// artist. The seed is either a raw Spotify artist id or a free-text
// artist name.
type StartSearchRequest struct {
	SeedIdentifier string `json:"seedIdentifier" validate:"required,min=1"`
}

// StartSearchResponse acknowledges the search; the build continues in
// the background and progress arrives on the updates stream.
type StartSearchResponse struct {
	JobID      string `json:"jobId"`
	ArtistID   string `json:"artistId"`
	ArtistName string `json:"artistName"`
}

// VoteRequest casts a like/dislike against the caller's current tree
// position. Position is caller-held state, echoed back on each call.
type VoteRequest struct {
	ArtistID        string `json:"artistId" validate:"required"`
	CurrentPosition int    `json:"currentPosition" validate:"required,min=1"`
	Liked           bool   `json:"liked"`
}

// Vote outcome statuses.
const (
	VoteStatusContinue = "continue"
	VoteStatusComplete = "complete"
)

// VoteResponse carries the next track, or status "complete" once the
// traversal is exhausted.
type VoteResponse struct {
	Status       string `json:"status"`
	NextPosition int    `json:"nextPosition"`
	Song         *Track `json:"song,omitempty"`
}
