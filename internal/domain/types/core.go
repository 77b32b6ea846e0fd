package types

import (
	"sort"
	"strings"
)

// UserID identifies an account on the directory service.
type UserID string

// String returns the string form of the user id.
func (u UserID) String() string { return string(u) }

// DeviceID identifies one installation of the client for a user.
type DeviceID string

// String returns the string form of the device id.
func (d DeviceID) String() string { return string(d) }

// ConversationID identifies one conversation.
type ConversationID string

// String returns the string form of the conversation id.
func (id ConversationID) String() string { return string(id) }

// MessageID is the client-generated idempotency key of one logical message.
// It is created before any network call and stays stable across the
// optimistic-to-confirmed transition.
type MessageID string

// String returns the string form of the message id.
func (id MessageID) String() string { return string(id) }

// EnvelopeID is the server-assigned id of a confirmed envelope. Optimistic
// entries carry no envelope id until they are reconciled.
type EnvelopeID string

// String returns the string form of the envelope id.
func (id EnvelopeID) String() string { return string(id) }

// Fingerprint is a short identifier for public keys presented to users.
type Fingerprint string

// String returns the string form of the fingerprint.
func (f Fingerprint) String() string { return string(f) }

// SignedPreKeyID uniquely identifies a signed pre-key.
type SignedPreKeyID string

// String returns the string form of the identifier.
func (id SignedPreKeyID) String() string { return string(id) }

// OneTimePreKeyID uniquely identifies a one-time pre-key.
type OneTimePreKeyID string

// String returns the string form of the identifier.
func (id OneTimePreKeyID) String() string { return string(id) }

// DirectConversation derives the canonical conversation id for a two-party
// conversation. Both parties compute the same id regardless of argument
// order.
func DirectConversation(a, b UserID) ConversationID {
	pair := []string{a.String(), b.String()}
	sort.Strings(pair)
	return ConversationID("dm:" + strings.Join(pair, "|"))
}
