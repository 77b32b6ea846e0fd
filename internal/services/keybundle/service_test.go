package keybundle_test

import (
	"context"
	"errors"
	"testing"

	"courier/internal/domain"
	"courier/internal/services/keybundle"
	"courier/internal/store"
)

// directoryRelay is an in-memory directory: publishes land in a map,
// fetches read from it, and the network can be "cut" to test fallback.
type directoryRelay struct {
	bundles map[domain.UserID]domain.KeyBundle
	down    bool
}

func (r *directoryRelay) PublishKeyBundle(_ context.Context, b domain.KeyBundle) error {
	if r.down {
		return errors.New("relay unreachable")
	}
	r.bundles[b.UserID] = b
	return nil
}

func (r *directoryRelay) FetchKeyBundle(_ context.Context, user domain.UserID) (domain.KeyBundle, error) {
	if r.down {
		return domain.KeyBundle{}, errors.New("relay unreachable")
	}
	b, ok := r.bundles[user]
	if !ok {
		return domain.KeyBundle{}, domain.ErrPeerBundleUnavailable
	}
	return b, nil
}

func (r *directoryRelay) FetchHistory(context.Context, domain.ConversationID) ([]domain.Envelope, error) {
	return nil, nil
}

func (r *directoryRelay) SendMessage(context.Context, domain.SendRequest) (domain.Envelope, error) {
	return domain.Envelope{}, nil
}

func (r *directoryRelay) OpenStream(context.Context, domain.ConversationID) (<-chan domain.Event, error) {
	return nil, errors.New("not implemented")
}

func (r *directoryRelay) UploadAttachment(context.Context, []byte, domain.AttachmentMeta) (string, error) {
	return "", errors.New("not implemented")
}

func (r *directoryRelay) FetchAttachment(context.Context, string) ([]byte, error) {
	return nil, errors.New("not implemented")
}

func (r *directoryRelay) Typing(context.Context, domain.ConversationID, domain.UserID, bool) error {
	return nil
}

func newService(t *testing.T, relay domain.RelayClient) *keybundle.Service {
	t.Helper()
	dir := t.TempDir()
	return keybundle.New(
		store.NewDeviceFileStore(dir),
		store.NewPreKeyFileStore(dir),
		store.NewBundleFileStore(dir),
		relay,
	)
}

func TestEnsureLocalBundle_Idempotent(t *testing.T) {
	relay := &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{}}
	svc := newService(t, relay)
	ctx := context.Background()

	first, err := svc.EnsureLocalBundle(ctx, "pass", "alice", "laptop")
	if err != nil {
		t.Fatalf("EnsureLocalBundle: %v", err)
	}
	if first.UserID != "alice" || first.DeviceID != "laptop" {
		t.Fatalf("bundle identity: %+v", first)
	}
	if len(first.OneTimePreKeys) != 10 {
		t.Fatalf("want 10 one-time pre-keys, got %d", len(first.OneTimePreKeys))
	}

	second, err := svc.EnsureLocalBundle(ctx, "pass", "alice", "laptop")
	if err != nil {
		t.Fatalf("second EnsureLocalBundle: %v", err)
	}
	if second.IdentityKey != first.IdentityKey || second.SignedPreKeyID != first.SignedPreKeyID {
		t.Fatalf("second call regenerated key material")
	}

	id, err := svc.Identity()
	if err != nil {
		t.Fatalf("Identity: %v", err)
	}
	if id.XPub != first.IdentityKey {
		t.Fatalf("identity does not match bundle")
	}
}

func TestIdentity_RequiresEnsure(t *testing.T) {
	svc := newService(t, &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{}})
	if _, err := svc.Identity(); err == nil {
		t.Fatalf("want error before EnsureLocalBundle")
	}
}

func TestFetch_UnpublishedPeer(t *testing.T) {
	svc := newService(t, &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{}})
	_, err := svc.Fetch(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrPeerBundleUnavailable) {
		t.Fatalf("want ErrPeerBundleUnavailable, got %v", err)
	}
}

func TestFetch_FallsBackToCacheWhenRelayDown(t *testing.T) {
	relay := &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{
		"bob": {UserID: "bob", DeviceID: "phone", SignedPreKeyID: "spk-x"},
	}}
	svc := newService(t, relay)
	ctx := context.Background()

	if _, err := svc.Fetch(ctx, "bob"); err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	relay.down = true
	cached, err := svc.Fetch(ctx, "bob")
	if err != nil {
		t.Fatalf("Fetch with relay down: %v", err)
	}
	if cached.SignedPreKeyID != "spk-x" {
		t.Fatalf("cache returned wrong bundle: %+v", cached)
	}

	// No cache entry means the transport error surfaces.
	if _, err := svc.Fetch(ctx, "carol"); err == nil || errors.Is(err, domain.ErrPeerBundleUnavailable) {
		t.Fatalf("want transport error for uncached peer, got %v", err)
	}
}

func TestPublish_UploadsAndCaches(t *testing.T) {
	relay := &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{}}
	svc := newService(t, relay)
	ctx := context.Background()

	bundle, err := svc.EnsureLocalBundle(ctx, "pass", "alice", "laptop")
	if err != nil {
		t.Fatalf("EnsureLocalBundle: %v", err)
	}
	if err := svc.Publish(ctx, bundle); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, ok := relay.bundles["alice"]; !ok {
		t.Fatalf("bundle did not reach the directory")
	}
}

func TestFetch_CacheHoldsNoOneTimePreKeys(t *testing.T) {
	relay := &directoryRelay{bundles: map[domain.UserID]domain.KeyBundle{
		"bob": {
			UserID:         "bob",
			SignedPreKeyID: "spk-x",
			OneTimePreKeys: []domain.OneTimePreKeyPublic{{ID: "opk-1"}},
		},
	}}
	svc := newService(t, relay)
	ctx := context.Background()

	live, err := svc.Fetch(ctx, "bob")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(live.OneTimePreKeys) != 1 {
		t.Fatalf("live fetch lost the dispensed pre-key: %+v", live)
	}

	// The cached fallback must not replay a single-use pre-key the peer
	// has already deleted.
	relay.down = true
	cached, err := svc.Fetch(ctx, "bob")
	if err != nil {
		t.Fatalf("Fetch with relay down: %v", err)
	}
	if len(cached.OneTimePreKeys) != 0 {
		t.Fatalf("cached bundle still carries one-time pre-keys: %+v", cached)
	}
}
