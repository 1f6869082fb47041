package model

// StatusEvent is one frame on a job's status stream. The stream always
// ends with exactly one terminal event (completed or error).
type StatusEvent struct {
	Status     JobStatus `json:"status"`
	Song       *Track    `json:"song,omitempty"`
	ArtistID   string    `json:"artistId,omitempty"`
	ArtistName string    `json:"artistName,omitempty"`
	Message    string    `json:"message,omitempty"`
}

// WebSocket control message types used alongside status events on the
// /ws transport.
const (
	WSMessageTypePing = "ping"
	WSMessageTypePong = "pong"
)

// WSMessage represents a generic WebSocket control message.
type WSMessage struct {
	Type string `json:"type"`
}
