package interfaces

import (
	"context"

	domaintypes "courier/internal/domain/types"
)

// Session is the ratchet capability surface for one peer: opaque encrypt
// and decrypt over an established cryptographic session. Implementations
// serialise ratchet use internally; the ratchet state is owned by the
// session manager and is never mutated elsewhere.
type Session interface {
	Peer() domaintypes.UserID
	Encrypt(plaintext []byte) (wire []byte, err error)
	Decrypt(wire []byte) (plaintext []byte, err error)
}

// KeyBundleService persists and publishes this device's key material and
// fetches peers' bundles from the directory.
type KeyBundleService interface {
	// EnsureLocalBundle is idempotent: it generates and persists local key
	// material on the first call for a device and returns the cached
	// bundle afterwards.
	EnsureLocalBundle(
		ctx context.Context,
		passphrase string,
		user domaintypes.UserID,
		device domaintypes.DeviceID,
	) (domaintypes.KeyBundle, error)
	Publish(ctx context.Context, bundle domaintypes.KeyBundle) error
	Fetch(ctx context.Context, peer domaintypes.UserID) (domaintypes.KeyBundle, error)

	// Identity returns the unlocked device identity. EnsureLocalBundle
	// must have succeeded earlier in the process lifetime.
	Identity() (domaintypes.DeviceIdentity, error)
}

// SessionManager owns one cryptographic session per remote peer for the
// process lifetime. Sessions are established lazily from fetched bundles
// and are never persisted.
type SessionManager interface {
	// Get is a pure lookup and never triggers network I/O.
	Get(peer domaintypes.UserID) Session

	// GetOrCreate establishes a session on miss. It returns (nil, nil)
	// when the peer's bundle is unavailable or establishment fails,
	// signalling degraded mode to the caller.
	GetOrCreate(ctx context.Context, peer domaintypes.UserID) (Session, error)

	// DecryptFrom resolves (or bootstraps, for a first inbound secure
	// message carrying handshake parameters) the session with peer and
	// decrypts one wire message through it.
	DecryptFrom(peer domaintypes.UserID, wire []byte) ([]byte, error)

	// Drop discards the session with peer, returning it to the
	// no-session state; the next GetOrCreate rebuilds from a fresh
	// bundle fetch.
	Drop(peer domaintypes.UserID)
}

// MessageCipher encrypts and decrypts message bodies, degrading to a
// reversible transport encoding when no session exists.
type MessageCipher interface {
	// EncryptText uses the ratchet when sess is non-nil and the tagged
	// degraded encoding otherwise.
	EncryptText(sess Session, plaintext string) (string, error)

	// DecryptText never fails the conversation: ok is false when the
	// cipher text cannot be recovered by any path, and the caller
	// renders a placeholder for that one message.
	DecryptText(peer domaintypes.UserID, cipherText string) (plaintext string, ok bool)
}

// AttachmentCodec encrypts a file once under a random content key and
// wraps that key separately for each recipient.
type AttachmentCodec interface {
	Encrypt(
		ctx context.Context,
		content []byte,
		mime string,
		recipients []domaintypes.UserID,
	) (cipherBlob []byte, meta domaintypes.AttachmentMeta, err error)
	Decrypt(
		ctx context.Context,
		self domaintypes.UserID,
		sender domaintypes.UserID,
		cipherBlob []byte,
		meta domaintypes.AttachmentMeta,
	) ([]byte, error)
}

// DeliveryChannel streams new envelopes and typing signals for open
// conversations, with a history fetch used for catch-up. Exactly one live
// subscription exists per conversation; opening a new one closes the
// prior one.
type DeliveryChannel interface {
	FetchHistory(
		ctx context.Context,
		conversation domaintypes.ConversationID,
	) ([]domaintypes.Envelope, error)
	Open(
		ctx context.Context,
		conversation domaintypes.ConversationID,
	) (<-chan domaintypes.Event, error)
	Close(conversation domaintypes.ConversationID)

	// Typing is fire-and-forget: failures are logged, never surfaced.
	Typing(
		ctx context.Context,
		conversation domaintypes.ConversationID,
		user domaintypes.UserID,
		active bool,
	)
}
