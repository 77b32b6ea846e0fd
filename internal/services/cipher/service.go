package cipher

import (
	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/payload"
)

// Service implements domain.MessageCipher over the session manager.
type Service struct {
	sessions domain.SessionManager
	log      *zap.Logger
}

// New constructs a message cipher.
func New(sessions domain.SessionManager, log *zap.Logger) *Service {
	return &Service{sessions: sessions, log: log}
}

// EncryptText produces the wire form of a message body. With a session it
// is ratchet ciphertext; without one it is the reversible degraded
// encoding, visibly tagged as such.
func (s *Service) EncryptText(sess domain.Session, plaintext string) (string, error) {
	if sess == nil {
		return payload.Degraded([]byte(plaintext)).Encode(), nil
	}
	wire, err := sess.Encrypt([]byte(plaintext))
	if err != nil {
		return "", err
	}
	return payload.Secure(wire).Encode(), nil
}

// DecryptText recovers a message body. A failure affects only that one
// message: ok is false and the caller renders a placeholder, the
// conversation itself keeps flowing.
func (s *Service) DecryptText(peer domain.UserID, cipherText string) (string, bool) {
	p, err := payload.Decode(cipherText)
	if err != nil {
		s.log.Debug("undecodable message payload",
			zap.String("peer", peer.String()), zap.Error(err))
		return "", false
	}
	if !p.IsSecure() {
		return string(p.Data), true
	}
	pt, err := s.sessions.DecryptFrom(peer, p.Data)
	if err != nil {
		s.log.Warn("message decryption failed",
			zap.String("peer", peer.String()), zap.Error(err))
		return "", false
	}
	return string(pt), true
}

var _ domain.MessageCipher = (*Service)(nil)
