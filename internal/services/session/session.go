package session

import (
	"sync"

	"courier/internal/domain"
	"courier/internal/protocol/ratchet"
)

// Session is one peer's established Double Ratchet, usable from multiple
// goroutines. The mutex serialises every touch of the ratchet state.
type Session struct {
	mu    sync.Mutex
	peer  domain.UserID
	state domain.RatchetState

	// pending carries the X3DH handshake parameters on every outbound
	// message until the peer's first secure reply proves the responder
	// side exists.
	pending *domain.PreKeyMessage
}

// Peer returns the remote user this session encrypts for.
func (s *Session) Peer() domain.UserID { return s.peer }

// Encrypt advances the sending chain and returns one wire message.
func (s *Session) Encrypt(plaintext []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	header, ct, err := ratchet.Encrypt(&s.state, nil, plaintext)
	if err != nil {
		return nil, err
	}
	return wireMessage{Header: header, PreKey: s.pending, Cipher: ct}.encode()
}

// Decrypt opens one wire message through the receiving chain. A
// successful decrypt means the peer holds the session, so any pending
// handshake parameters stop being attached to outbound messages.
func (s *Session) Decrypt(wire []byte) ([]byte, error) {
	msg, err := parseWire(wire)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pt, err := ratchet.Decrypt(&s.state, nil, msg.Header, msg.Cipher)
	if err != nil {
		return nil, err
	}
	s.pending = nil
	return pt, nil
}

var _ domain.Session = (*Session)(nil)
