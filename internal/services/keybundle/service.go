package keybundle

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"courier/internal/crypto"
	"courier/internal/domain"
)

// oneTimePreKeyBatch is how many one-time pre-keys are provisioned along
// with a fresh signed pre-key.
const oneTimePreKeyBatch = 10

var errLocked = errors.New("device identity not unlocked; call EnsureLocalBundle first")

// Service persists and publishes this device's key material and fetches
// peers' bundles.
//
// The local identity is read-mostly process-wide state: it is unlocked
// (or generated) once by EnsureLocalBundle and never rotated within a
// process lifetime.
type Service struct {
	devices domain.DeviceStore
	prekeys domain.PreKeyStore
	cache   domain.BundleCacheStore
	relay   domain.RelayClient

	mu       sync.Mutex
	identity *domain.DeviceIdentity
	local    *domain.KeyBundle
}

// New constructs a key bundle service with the given stores and relay client.
func New(
	devices domain.DeviceStore,
	prekeys domain.PreKeyStore,
	cache domain.BundleCacheStore,
	relay domain.RelayClient,
) *Service {
	return &Service{devices: devices, prekeys: prekeys, cache: cache, relay: relay}
}

// EnsureLocalBundle is idempotent: the first call for a device generates
// and persists identity keys, a signed pre-key and a batch of one-time
// pre-keys; later calls return the cached bundle.
//
// A failure to produce keys surfaces as domain.ErrKeyGeneration. That is
// fatal at device level: without an identity the device cannot take part
// in end-to-end encryption at all.
func (s *Service) EnsureLocalBundle(
	ctx context.Context,
	passphrase string,
	user domain.UserID,
	device domain.DeviceID,
) (domain.KeyBundle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.local != nil {
		return *s.local, nil
	}

	id, ok, err := s.devices.LoadDeviceIdentity(passphrase)
	if err != nil {
		return domain.KeyBundle{}, err
	}
	if !ok {
		id, err = s.generateIdentity(user, device)
		if err != nil {
			return domain.KeyBundle{}, err
		}
		if err := s.devices.SaveDeviceIdentity(passphrase, id); err != nil {
			return domain.KeyBundle{}, err
		}
	}

	spkID, err := s.ensureSignedPreKey(id)
	if err != nil {
		return domain.KeyBundle{}, err
	}

	_, spkPub, spkSig, found, err := s.prekeys.LoadSignedPreKey(spkID)
	if err != nil {
		return domain.KeyBundle{}, err
	}
	if !found {
		return domain.KeyBundle{}, fmt.Errorf("current signed pre-key %q missing from store", spkID)
	}
	oneTime, err := s.prekeys.ListOneTimePreKeyPublics()
	if err != nil {
		return domain.KeyBundle{}, err
	}

	bundle := domain.KeyBundle{
		UserID:                id.UserID,
		DeviceID:              id.DeviceID,
		IdentityKey:           id.XPub,
		SigningKey:            id.EdPub,
		SignedPreKeyID:        spkID,
		SignedPreKey:          spkPub,
		SignedPreKeySignature: spkSig,
		OneTimePreKeys:        oneTime,
	}
	s.identity = &id
	s.local = &bundle
	return bundle, nil
}

// Identity returns the unlocked device identity.
func (s *Service) Identity() (domain.DeviceIdentity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return domain.DeviceIdentity{}, errLocked
	}
	return *s.identity, nil
}

// Publish uploads the bundle to the directory service and caches it.
// Retries are the caller's responsibility.
func (s *Service) Publish(ctx context.Context, bundle domain.KeyBundle) error {
	if err := s.relay.PublishKeyBundle(ctx, bundle); err != nil {
		return err
	}
	return s.cache.SaveKeyBundle(bundle)
}

// Fetch retrieves a peer's bundle from the directory. The fetched copy is
// cached; the cache also serves as a fallback when the directory is
// unreachable. A peer that has never published yields
// domain.ErrPeerBundleUnavailable.
//
// One-time pre-keys never enter the cache: the directory dispenses each
// one for a single handshake, and a replayed copy would target a private
// key the peer has already deleted. A handshake started from the cached
// fallback therefore runs without one.
func (s *Service) Fetch(ctx context.Context, peer domain.UserID) (domain.KeyBundle, error) {
	bundle, err := s.relay.FetchKeyBundle(ctx, peer)
	if err == nil {
		cacheable := bundle
		cacheable.OneTimePreKeys = nil
		if cacheErr := s.cache.SaveKeyBundle(cacheable); cacheErr != nil {
			return bundle, nil // cache write failure is not a fetch failure
		}
		return bundle, nil
	}
	if errors.Is(err, domain.ErrPeerBundleUnavailable) {
		return domain.KeyBundle{}, err
	}
	if cached, ok, cacheErr := s.cache.LoadKeyBundle(peer); cacheErr == nil && ok {
		return cached, nil
	}
	return domain.KeyBundle{}, err
}

func (s *Service) generateIdentity(
	user domain.UserID,
	device domain.DeviceID,
) (domain.DeviceIdentity, error) {
	xPriv, xPub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	edPriv, edPub, err := crypto.GenerateEd25519()
	if err != nil {
		return domain.DeviceIdentity{}, fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	return domain.DeviceIdentity{
		UserID:   user,
		DeviceID: device,
		XPub:     xPub,
		XPriv:    xPriv,
		EdPub:    edPub,
		EdPriv:   edPriv,
	}, nil
}

// ensureSignedPreKey returns the current signed pre-key id, provisioning
// a fresh signed pre-key and a batch of one-time pre-keys when none is
// recorded yet.
func (s *Service) ensureSignedPreKey(id domain.DeviceIdentity) (domain.SignedPreKeyID, error) {
	current, ok, err := s.prekeys.CurrentSignedPreKeyID()
	if err != nil {
		return "", err
	}
	if ok {
		return current, nil
	}

	spkPriv, spkPub, err := crypto.GenerateX25519()
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
	}
	spkID := domain.SignedPreKeyID("spk-" + uuid.NewString())
	sig := crypto.SignEd25519(id.EdPriv, spkPub.Slice())
	if err := s.prekeys.SaveSignedPreKey(spkID, spkPriv, spkPub, sig); err != nil {
		return "", err
	}
	if err := s.prekeys.SetCurrentSignedPreKeyID(spkID); err != nil {
		return "", err
	}

	pairs := make([]domain.OneTimePreKeyPair, 0, oneTimePreKeyBatch)
	for i := 0; i < oneTimePreKeyBatch; i++ {
		priv, pub, err := crypto.GenerateX25519()
		if err != nil {
			return "", fmt.Errorf("%w: %v", domain.ErrKeyGeneration, err)
		}
		pairs = append(pairs, domain.OneTimePreKeyPair{
			ID:   domain.OneTimePreKeyID("opk-" + uuid.NewString()),
			Priv: priv,
			Pub:  pub,
		})
	}
	if err := s.prekeys.SaveOneTimePreKeys(pairs); err != nil {
		return "", err
	}
	return spkID, nil
}

// Compile-time assertion that Service implements domain.KeyBundleService.
var _ domain.KeyBundleService = (*Service)(nil)
