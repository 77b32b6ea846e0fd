package relayserver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// BlobStore keeps encrypted attachment blobs on disk under uuid names.
// Blobs are opaque ciphertext; names carry no information about content.
type BlobStore struct {
	dir string
}

// NewBlobStore ensures the blob directory exists.
func NewBlobStore(dir string) (*BlobStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &BlobStore{dir: dir}, nil
}

// Save writes one blob and returns its assigned id.
func (b *BlobStore) Save(blob []byte) (string, error) {
	id := uuid.NewString()
	if err := os.WriteFile(filepath.Join(b.dir, id), blob, 0o600); err != nil {
		return "", err
	}
	return id, nil
}

// Load reads one blob by id. The id must parse as a uuid so a crafted
// reference can never escape the blob directory.
func (b *BlobStore) Load(id string) ([]byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("bad blob id: %w", err)
	}
	return os.ReadFile(filepath.Join(b.dir, id))
}
