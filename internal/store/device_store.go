package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"courier/internal/domain"
)

const deviceFile = "device.json.enc"

// DeviceFileStore persists the local device identity to disk, encrypted
// with a passphrase-derived key.
type DeviceFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewDeviceFileStore returns a DeviceFileStore rooted at dir.
func NewDeviceFileStore(dir string) *DeviceFileStore {
	return &DeviceFileStore{dir: dir}
}

// SaveDeviceIdentity writes the encrypted device identity to disk.
func (s *DeviceFileStore) SaveDeviceIdentity(passphrase string, id domain.DeviceIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(id)
	if err != nil {
		return err
	}
	ct, err := sealKeyFile(passphrase, raw)
	if err != nil {
		return err
	}
	return storeBytes(filepath.Join(s.dir, deviceFile), ct, 0o600)
}

// LoadDeviceIdentity reads and decrypts the device identity. A missing
// file yields ok=false, not an error, so first-run provisioning can
// detect the absence.
func (s *DeviceFileStore) LoadDeviceIdentity(passphrase string) (domain.DeviceIdentity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(s.dir, deviceFile))
	if errors.Is(err, os.ErrNotExist) {
		return domain.DeviceIdentity{}, false, nil
	}
	if err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	pt, err := openKeyFile(passphrase, b)
	if err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	var id domain.DeviceIdentity
	if err := json.Unmarshal(pt, &id); err != nil {
		return domain.DeviceIdentity{}, false, err
	}
	return id, true, nil
}

// Compile-time assertion that DeviceFileStore implements domain.DeviceStore.
var _ domain.DeviceStore = (*DeviceFileStore)(nil)
