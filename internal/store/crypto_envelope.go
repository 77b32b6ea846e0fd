package store

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"

	"courier/internal/util/memzero"
)

// keystoreVersion is the on-disk format version of sealed key files.
const keystoreVersion = 1

var errWrongPassphrase = errors.New("wrong passphrase or corrupted key material")

// sealedFile is the JSON document written for passphrase-protected key
// material. The scrypt parameters ride along so they can be raised later
// without breaking files already on disk.
type sealedFile struct {
	Version int       `json:"version"`
	KDF     kdfParams `json:"kdf"`
	Salt    []byte    `json:"salt"`
	Box     []byte    `json:"box"`
}

type kdfParams struct {
	N int `json:"n"`
	R int `json:"r"`
	P int `json:"p"`
}

// sealKeyFile derives a key from passphrase and seals raw into a
// sealedFile document. The salt doubles as additional data, binding the
// box to this document.
func sealKeyFile(passphrase string, raw []byte) ([]byte, error) {
	params := kdfParams{N: 1 << 15, R: 8, P: 1}

	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key, err := scrypt.Key([]byte(passphrase), salt, params.N, params.R, params.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	// The key is derived from a fresh salt every seal, so a fixed nonce
	// is never reused under the same key.
	nonce := make([]byte, chacha20poly1305.NonceSize)
	box := aead.Seal(nil, nonce, raw, salt)

	return json.Marshal(sealedFile{
		Version: keystoreVersion,
		KDF:     params,
		Salt:    salt,
		Box:     box,
	})
}

// openKeyFile reverses sealKeyFile. A wrong passphrase and a tampered
// document are indistinguishable; both surface as errWrongPassphrase.
func openKeyFile(passphrase string, data []byte) ([]byte, error) {
	var f sealedFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.Version > keystoreVersion {
		return nil, fmt.Errorf("key file version %d is newer than this build understands", f.Version)
	}

	key, err := scrypt.Key([]byte(passphrase), f.Salt, f.KDF.N, f.KDF.R, f.KDF.P, chacha20poly1305.KeySize)
	if err != nil {
		return nil, err
	}
	defer memzero.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSize)
	pt, err := aead.Open(nil, nonce, f.Box, f.Salt)
	if err != nil {
		return nil, errWrongPassphrase
	}
	return pt, nil
}
