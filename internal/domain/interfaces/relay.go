package interfaces

import (
	"context"

	domaintypes "courier/internal/domain/types"
)

// SendRequest is the payload of the send-message operation.
type SendRequest struct {
	ConversationID domaintypes.ConversationID  `json:"conversation_id"`
	SenderUserID   domaintypes.UserID          `json:"sender_user_id"`
	SenderDeviceID domaintypes.DeviceID        `json:"sender_device_id"`
	MessageID      domaintypes.MessageID       `json:"message_id"`
	CipherText     string                      `json:"cipher_text"`
	AttachmentURL  string                      `json:"attachment_url,omitempty"`
	AttachmentMeta *domaintypes.AttachmentMeta `json:"attachment_meta,omitempty"`
}

// RelayClient is how we talk to the relay and directory server, all with
// context. Stream events are delivered on a channel that is closed when
// the subscription ends, whether by cancellation or disconnect.
type RelayClient interface {
	PublishKeyBundle(ctx context.Context, bundle domaintypes.KeyBundle) error
	FetchKeyBundle(ctx context.Context, user domaintypes.UserID) (domaintypes.KeyBundle, error)

	FetchHistory(
		ctx context.Context,
		conversation domaintypes.ConversationID,
	) ([]domaintypes.Envelope, error)
	SendMessage(ctx context.Context, req SendRequest) (domaintypes.Envelope, error)
	OpenStream(
		ctx context.Context,
		conversation domaintypes.ConversationID,
	) (<-chan domaintypes.Event, error)

	UploadAttachment(
		ctx context.Context,
		blob []byte,
		meta domaintypes.AttachmentMeta,
	) (url string, err error)
	FetchAttachment(ctx context.Context, url string) ([]byte, error)

	Typing(
		ctx context.Context,
		conversation domaintypes.ConversationID,
		user domaintypes.UserID,
		active bool,
	) error
}
