package session

import (
	"encoding/json"
	"fmt"

	"courier/internal/domain"
)

// wireMessage is the secure payload body: a ratchet header, the
// ciphertext, and (on the first messages of a conversation) the X3DH
// handshake parameters the responder needs to build its side.
type wireMessage struct {
	Header domain.RatchetHeader  `json:"header"`
	PreKey *domain.PreKeyMessage `json:"pre_key,omitempty"`
	Cipher []byte                `json:"cipher"`
}

func (m wireMessage) encode() ([]byte, error) {
	return json.Marshal(m)
}

func parseWire(raw []byte) (wireMessage, error) {
	var m wireMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return wireMessage{}, fmt.Errorf("malformed wire message: %w", err)
	}
	if len(m.Header.DiffieHellmanPublicKey) != 32 {
		return wireMessage{}, fmt.Errorf("malformed wire message: bad ratchet public key length %d", len(m.Header.DiffieHellmanPublicKey))
	}
	return m, nil
}
