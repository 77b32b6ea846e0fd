package attachment

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/payload"
	"courier/internal/util/memzero"
)

// Service implements domain.AttachmentCodec: one content key per file,
// one sealed blob, one wrapped key per recipient.
type Service struct {
	self     domain.UserID
	sessions domain.SessionManager
	log      *zap.Logger
}

// New constructs an attachment codec for the local user.
func New(self domain.UserID, sessions domain.SessionManager, log *zap.Logger) *Service {
	return &Service{self: self, sessions: sessions, log: log}
}

// Encrypt seals content once under a fresh content key and wraps the key
// for every recipient. The recipient set always includes the sender, so
// the sender can reopen its own uploads; the sender's entry (and any
// recipient without a session) gets the tagged degraded wrap.
func (s *Service) Encrypt(
	ctx context.Context,
	content []byte,
	mime string,
	recipients []domain.UserID,
) ([]byte, domain.AttachmentMeta, error) {
	key, err := crypto.NewContentKey()
	if err != nil {
		return nil, domain.AttachmentMeta{}, err
	}
	defer memzero.Zero(key)

	blob, err := crypto.SealBlob(key, content)
	if err != nil {
		return nil, domain.AttachmentMeta{}, err
	}

	envelopes := make(map[domain.UserID]string, len(recipients))
	for _, r := range recipients {
		wrapped, err := s.wrapKey(ctx, r, key)
		if err != nil {
			return nil, domain.AttachmentMeta{}, err
		}
		envelopes[r] = wrapped
	}

	return blob, domain.AttachmentMeta{
		Mime:      mime,
		Size:      int64(len(content)),
		Envelopes: envelopes,
	}, nil
}

// Decrypt recovers the content for self. Metadata carrying per-recipient
// envelopes uses self's own entry; older metadata without envelopes falls
// back to the single shared key. Every failure collapses to
// domain.ErrAttachmentUnavailable so one broken attachment stays an
// isolated per-message state.
func (s *Service) Decrypt(
	ctx context.Context,
	self domain.UserID,
	sender domain.UserID,
	cipherBlob []byte,
	meta domain.AttachmentMeta,
) ([]byte, error) {
	var wrapped string
	switch {
	case len(meta.Envelopes) > 0:
		entry, ok := meta.Envelopes[self]
		if !ok {
			return nil, fmt.Errorf("%w: no key envelope for %s", domain.ErrAttachmentUnavailable, self)
		}
		wrapped = entry
	case meta.Key != "":
		wrapped = meta.Key
	default:
		return nil, fmt.Errorf("%w: metadata carries no key material", domain.ErrAttachmentUnavailable)
	}

	key, err := s.unwrapKey(sender, wrapped)
	if err != nil {
		s.log.Debug("attachment key unwrap failed",
			zap.String("sender", sender.String()), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrAttachmentUnavailable, err)
	}
	defer memzero.Zero(key)

	content, err := crypto.OpenBlob(key, cipherBlob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAttachmentUnavailable, err)
	}
	return content, nil
}

// wrapKey encrypts the content key for one recipient through their
// session, degrading to the tagged plain wrap when none can exist. The
// sender never holds a session with itself, so its own entry is always
// the degraded wrap.
func (s *Service) wrapKey(ctx context.Context, recipient domain.UserID, key []byte) (string, error) {
	if recipient != s.self {
		sess, err := s.sessions.GetOrCreate(ctx, recipient)
		if err != nil {
			return "", err
		}
		if sess != nil {
			wire, err := sess.Encrypt(key)
			if err != nil {
				return "", err
			}
			return payload.Secure(wire).Encode(), nil
		}
	}
	return payload.Degraded(key).Encode(), nil
}

func (s *Service) unwrapKey(sender domain.UserID, wrapped string) ([]byte, error) {
	p, err := payload.Decode(wrapped)
	if err != nil {
		return nil, err
	}
	if !p.IsSecure() {
		return p.Data, nil
	}
	return s.sessions.DecryptFrom(sender, p.Data)
}

var _ domain.AttachmentCodec = (*Service)(nil)
