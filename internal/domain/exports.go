package domain

import (
	interfaces "courier/internal/domain/interfaces"
	types "courier/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	UserID              = types.UserID
	DeviceID            = types.DeviceID
	ConversationID      = types.ConversationID
	MessageID           = types.MessageID
	EnvelopeID          = types.EnvelopeID
	Fingerprint         = types.Fingerprint
	SignedPreKeyID      = types.SignedPreKeyID
	OneTimePreKeyID     = types.OneTimePreKeyID
	DeviceIdentity      = types.DeviceIdentity
	OneTimePreKeyPair   = types.OneTimePreKeyPair
	OneTimePreKeyPublic = types.OneTimePreKeyPublic
	KeyBundle           = types.KeyBundle
	PreKeyMessage       = types.PreKeyMessage
	Envelope            = types.Envelope
	AttachmentMeta      = types.AttachmentMeta
	Status              = types.Status
	Event               = types.Event
	EventType           = types.EventType
	RatchetHeader       = types.RatchetHeader
	RatchetState        = types.RatchetState
	X25519Public        = types.X25519Public
	X25519Private       = types.X25519Private
	Ed25519Public       = types.Ed25519Public
	Ed25519Private      = types.Ed25519Private
)

// Status and event constants re-exported for compact imports.
const (
	StatusSending   = types.StatusSending
	StatusSent      = types.StatusSent
	StatusDelivered = types.StatusDelivered
	StatusRead      = types.StatusRead
	StatusFailed    = types.StatusFailed

	EventMessage     = types.EventMessage
	EventTypingStart = types.EventTypingStart
	EventTypingStop  = types.EventTypingStop
)

// DirectConversation derives the canonical two-party conversation id.
func DirectConversation(a, b UserID) ConversationID {
	return types.DirectConversation(a, b)
}

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Session          = interfaces.Session
	KeyBundleService = interfaces.KeyBundleService
	SessionManager   = interfaces.SessionManager
	MessageCipher    = interfaces.MessageCipher
	AttachmentCodec  = interfaces.AttachmentCodec
	DeliveryChannel  = interfaces.DeliveryChannel
	RelayClient      = interfaces.RelayClient
	SendRequest      = interfaces.SendRequest
	DeviceStore      = interfaces.DeviceStore
	PreKeyStore      = interfaces.PreKeyStore
	BundleCacheStore = interfaces.BundleCacheStore
)
