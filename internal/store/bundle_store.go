package store

import (
	"path/filepath"
	"sync"

	"courier/internal/domain"
)

const bundlesFile = "bundles.json"

// BundleFileStore caches key bundles on disk, keyed by user id: the one
// this device last published plus any fetched for peers. A cached peer
// bundle is only a fallback; fetches always prefer the directory.
type BundleFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewBundleFileStore returns a BundleFileStore rooted at dir.
func NewBundleFileStore(dir string) *BundleFileStore {
	return &BundleFileStore{dir: dir}
}

// SaveKeyBundle writes or replaces the cached bundle for its user.
func (s *BundleFileStore) SaveKeyBundle(b domain.KeyBundle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundlesFile)
	m := map[domain.UserID]domain.KeyBundle{}
	_ = loadJSON(path, &m)
	m[b.UserID] = b
	return storeJSON(path, m, 0o600)
}

// LoadKeyBundle returns the cached bundle for user and whether it was present.
func (s *BundleFileStore) LoadKeyBundle(user domain.UserID) (domain.KeyBundle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, bundlesFile)
	m := map[domain.UserID]domain.KeyBundle{}
	if err := loadJSON(path, &m); err != nil {
		return domain.KeyBundle{}, false, err
	}
	b, ok := m[user]
	return b, ok, nil
}

// Compile-time assertion that BundleFileStore implements domain.BundleCacheStore.
var _ domain.BundleCacheStore = (*BundleFileStore)(nil)
