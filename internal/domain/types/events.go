package types

// EventType discriminates the server-push events of a conversation stream.
type EventType string

const (
	EventMessage     EventType = "message"
	EventTypingStart EventType = "typing_start"
	EventTypingStop  EventType = "typing_stop"
)

// Event is one server-push event. Message events carry the confirmed
// envelope; typing events carry only the user who started or stopped.
type Event struct {
	Type    EventType `json:"type"`
	Message *Envelope `json:"message,omitempty"`
	UserID  UserID    `json:"user_id,omitempty"`
}
