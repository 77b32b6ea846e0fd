package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// loadJSON reads the JSON file at path into out. A file that does not
// exist yet leaves out untouched and returns nil, so every store starts
// from its zero value on first run.
func loadJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// storeJSON writes v as indented JSON through storeBytes.
func storeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return storeBytes(path, b, mode)
}

// storeBytes writes b to a temp file in the target's directory, fsyncs
// it, then renames it over path. Readers either see the old file or the
// complete new one, never a torn write.
func storeBytes(path string, b []byte, mode os.FileMode) error {
	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	if err := f.Chmod(mode); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
