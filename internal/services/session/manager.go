package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/protocol/ratchet"
	"courier/internal/protocol/x3dh"
	"courier/internal/util/memzero"
)

// sessionCacheSize bounds in-memory sessions. Evicted peers simply
// re-establish on the next message exchanged with them.
const sessionCacheSize = 128

// Manager holds at most one session per remote peer and coordinates
// establishment so concurrent senders to the same peer share a single
// handshake.
type Manager struct {
	bundles domain.KeyBundleService
	prekeys domain.PreKeyStore
	log     *zap.Logger

	mu       sync.Mutex
	sessions *lru.Cache[domain.UserID, *Session]
	inflight map[domain.UserID]*establishment
}

// establishment is one in-flight handshake; waiters block on done and
// read sess afterwards. A nil sess means degraded mode.
type establishment struct {
	done chan struct{}
	sess *Session
}

// NewManager constructs a session manager over the given key bundle
// service and pre-key store.
func NewManager(bundles domain.KeyBundleService, prekeys domain.PreKeyStore, log *zap.Logger) *Manager {
	cache, _ := lru.New[domain.UserID, *Session](sessionCacheSize)
	return &Manager{
		bundles:  bundles,
		prekeys:  prekeys,
		log:      log,
		sessions: cache,
		inflight: make(map[domain.UserID]*establishment),
	}
}

// Get returns the cached session with peer, or nil. It never does I/O.
func (m *Manager) Get(peer domain.UserID) domain.Session {
	if s, ok := m.sessions.Get(peer); ok {
		return s
	}
	return nil
}

// GetOrCreate returns the session with peer, running the X3DH handshake
// on a miss. (nil, nil) means degraded mode: the peer has no published
// bundle or establishment failed, and the caller should fall back to the
// reversible transport encoding.
func (m *Manager) GetOrCreate(ctx context.Context, peer domain.UserID) (domain.Session, error) {
	m.mu.Lock()
	if s, ok := m.sessions.Get(peer); ok {
		m.mu.Unlock()
		return s, nil
	}
	if est, ok := m.inflight[peer]; ok {
		m.mu.Unlock()
		select {
		case <-est.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if est.sess == nil {
			return nil, nil
		}
		return est.sess, nil
	}
	est := &establishment{done: make(chan struct{})}
	m.inflight[peer] = est
	m.mu.Unlock()

	est.sess = m.establish(ctx, peer)

	m.mu.Lock()
	if est.sess != nil {
		m.sessions.Add(peer, est.sess)
	}
	delete(m.inflight, peer)
	m.mu.Unlock()
	close(est.done)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if est.sess == nil {
		return nil, nil
	}
	return est.sess, nil
}

// DecryptFrom decrypts one wire message from peer, bootstrapping the
// responder side of the session when the message carries handshake
// parameters and no session exists yet (or the existing one no longer
// matches the sender's ratchet).
func (m *Manager) DecryptFrom(peer domain.UserID, wire []byte) ([]byte, error) {
	msg, err := parseWire(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}

	if s, ok := m.sessions.Get(peer); ok {
		pt, err := s.Decrypt(wire)
		if err == nil {
			return pt, nil
		}
		// The peer may have lost its state and re-initiated. Only a
		// message carrying fresh handshake parameters can recover that.
		if msg.PreKey == nil {
			// An authentication failure is one corrupted message and
			// the session stays usable. Anything else means the chain
			// cannot proceed, so discard the session and let the next
			// exchange re-establish from a fresh handshake.
			if !errors.Is(err, ratchet.ErrMessageAuthentication) {
				m.log.Warn("dropping unrecoverable session",
					zap.String("peer", peer.String()), zap.Error(err))
				m.Drop(peer)
			}
			return nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
		}
		m.log.Debug("session decrypt failed, retrying as responder bootstrap",
			zap.String("peer", peer.String()), zap.Error(err))
	} else if msg.PreKey == nil {
		return nil, fmt.Errorf("%w: no session with %s and no handshake parameters", domain.ErrDecryptionFailed, peer)
	}

	sess, pt, err := m.bootstrapResponder(peer, msg)
	if err != nil {
		return nil, err
	}
	m.sessions.Add(peer, sess)
	return pt, nil
}

// Drop discards the session with peer. The next GetOrCreate starts over
// from a fresh bundle fetch.
func (m *Manager) Drop(peer domain.UserID) {
	m.sessions.Remove(peer)
}

// establish runs the initiator side of X3DH against peer's published
// bundle. It returns nil on any failure: degraded mode, never a hard
// error, so one unprovisioned peer cannot block messaging.
func (m *Manager) establish(ctx context.Context, peer domain.UserID) *Session {
	id, err := m.bundles.Identity()
	if err != nil {
		m.log.Error("session establishment without unlocked identity", zap.Error(err))
		return nil
	}
	bundle, err := m.bundles.Fetch(ctx, peer)
	if err != nil {
		m.log.Info("peer bundle unavailable, degrading",
			zap.String("peer", peer.String()), zap.Error(err))
		return nil
	}

	root, spkID, opkID, ephPub, err := x3dh.InitiatorRoot(id, bundle)
	if err != nil {
		m.log.Warn("x3dh handshake failed, degrading",
			zap.String("peer", peer.String()), zap.Error(err))
		return nil
	}
	st, err := ratchet.NewInitiator(root, bundle.IdentityKey)
	memzero.Zero(root)
	if err != nil {
		m.log.Warn("ratchet init failed, degrading",
			zap.String("peer", peer.String()), zap.Error(err))
		return nil
	}

	return &Session{
		peer:  peer,
		state: st,
		pending: &domain.PreKeyMessage{
			InitiatorIdentityKey: id.XPub,
			EphemeralKey:         ephPub,
			SignedPreKeyID:       spkID,
			OneTimePreKeyID:      opkID,
		},
	}
}

// bootstrapResponder derives our side of a session from the handshake
// parameters of the first secure message and decrypts that message.
func (m *Manager) bootstrapResponder(peer domain.UserID, msg wireMessage) (*Session, []byte, error) {
	id, err := m.bundles.Identity()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSessionEstablishment, err)
	}

	spkPriv, _, _, ok, err := m.prekeys.LoadSignedPreKey(msg.PreKey.SignedPreKeyID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSessionEstablishment, err)
	}
	if !ok {
		return nil, nil, fmt.Errorf("%w: signed pre-key %q not held", domain.ErrSessionEstablishment, msg.PreKey.SignedPreKeyID)
	}

	var opkPriv *domain.X25519Private
	if msg.PreKey.OneTimePreKeyID != "" {
		priv, _, found, err := m.prekeys.ConsumeOneTimePreKey(msg.PreKey.OneTimePreKeyID)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", domain.ErrSessionEstablishment, err)
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: one-time pre-key %q already consumed", domain.ErrSessionEstablishment, msg.PreKey.OneTimePreKeyID)
		}
		opkPriv = &priv
	}

	root, err := x3dh.ResponderRoot(id, spkPriv, opkPriv, *msg.PreKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSessionEstablishment, err)
	}

	var senderRatchetPub domain.X25519Public
	copy(senderRatchetPub[:], msg.Header.DiffieHellmanPublicKey)
	st, err := ratchet.NewResponder(root, id.XPriv, senderRatchetPub)
	memzero.Zero(root)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrSessionEstablishment, err)
	}

	sess := &Session{peer: peer, state: st}
	pt, err := ratchet.Decrypt(&sess.state, nil, msg.Header, msg.Cipher)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domain.ErrDecryptionFailed, err)
	}
	return sess, pt, nil
}

var _ domain.SessionManager = (*Manager)(nil)
