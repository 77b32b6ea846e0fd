package crypto

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ContentKeySize is the size of a per-attachment symmetric content key.
const ContentKeySize = chacha20poly1305.KeySize

var errBlobTooShort = errors.New("attachment blob shorter than nonce")

// NewContentKey returns a fresh random symmetric key. One key is generated
// per attachment and wrapped separately for each recipient.
func NewContentKey() ([]byte, error) {
	key := make([]byte, ContentKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	return key, nil
}

// SealBlob encrypts content once under key with XChaCha20-Poly1305. The
// random nonce is prepended so the blob is self-contained.
func SealBlob(key, content []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return aead.Seal(nonce, nonce, content, nil), nil
}

// OpenBlob reverses SealBlob.
func OpenBlob(key, blob []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}
	if len(blob) < aead.NonceSize() {
		return nil, errBlobTooShort
	}
	nonce, ct := blob[:aead.NonceSize()], blob[aead.NonceSize():]
	return aead.Open(nil, nonce, ct, nil)
}
