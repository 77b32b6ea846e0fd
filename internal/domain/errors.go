package domain

import "errors"

// Failure taxonomy. Everything except ErrKeyGeneration is caught at the
// narrowest possible scope (single message, single attachment) and turned
// into a status or placeholder rather than aborting the conversation.
var (
	// ErrKeyGeneration is fatal at device level: local identity cannot be
	// created and end-to-end encryption is unusable.
	ErrKeyGeneration = errors.New("key generation failed")

	// ErrPeerBundleUnavailable means the peer has never published a key
	// bundle. Callers fall back to the degraded transport encoding.
	ErrPeerBundleUnavailable = errors.New("peer key bundle unavailable")

	// ErrSessionEstablishment is treated like ErrPeerBundleUnavailable:
	// the affected send degrades instead of failing.
	ErrSessionEstablishment = errors.New("session establishment failed")

	// ErrDecryptionFailed is per-message and isolated: one undecryptable
	// message never interrupts the rest of the conversation.
	ErrDecryptionFailed = errors.New("message decryption failed")

	// ErrAttachmentUnavailable is the attachment analogue of
	// ErrDecryptionFailed, with a distinct user-facing marker.
	ErrAttachmentUnavailable = errors.New("attachment unavailable")
)
