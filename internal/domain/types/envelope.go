package types

// Status is the delivery state of one logical message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// Rank orders the forward-progress statuses. StatusFailed is outside the
// ladder: it is reachable from any state and terminal.
func (s Status) Rank() int {
	switch s {
	case StatusSending:
		return 0
	case StatusSent:
		return 1
	case StatusDelivered:
		return 2
	case StatusRead:
		return 3
	}
	return -1
}

// Envelope is the unit of transport and storage for one message.
//
// MessageID is generated client-side before any network call, so retries
// and the optimistic/confirmed pair of one logical message never
// duplicate. ID uniqueness holds only for confirmed envelopes.
type Envelope struct {
	ID             EnvelopeID      `json:"id,omitempty"`
	MessageID      MessageID       `json:"message_id"`
	ConversationID ConversationID  `json:"conversation_id"`
	SenderUserID   UserID          `json:"sender_user_id"`
	SenderDeviceID DeviceID        `json:"sender_device_id,omitempty"`
	CipherText     string          `json:"cipher_text"`
	AttachmentURL  string          `json:"attachment_url,omitempty"`
	AttachmentMeta *AttachmentMeta `json:"attachment_meta,omitempty"`
	CreatedAt      int64           `json:"created_at"` // unix milliseconds
	Status         Status          `json:"status,omitempty"`
}

// AttachmentMeta describes one encrypted attachment blob. The content key
// is generated once per file; Envelopes holds one wrapped copy of it per
// recipient, keyed by user id. Immutable once created.
//
// A nil Envelopes map selects the legacy single-key mode, where Key holds
// the one wrapped content key shared by every recipient.
type AttachmentMeta struct {
	Mime      string            `json:"mime"`
	Size      int64             `json:"size"`
	Envelopes map[UserID]string `json:"envelopes,omitempty"`
	Key       string            `json:"key,omitempty"`
}
