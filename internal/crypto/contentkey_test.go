package crypto_test

import (
	"bytes"
	"testing"

	"courier/internal/crypto"
)

func TestSealOpenBlob_RoundTrip(t *testing.T) {
	key, err := crypto.NewContentKey()
	if err != nil {
		t.Fatalf("NewContentKey: %v", err)
	}
	content := bytes.Repeat([]byte("chunk"), 1000)

	blob, err := crypto.SealBlob(key, content)
	if err != nil {
		t.Fatalf("SealBlob: %v", err)
	}
	got, err := crypto.OpenBlob(key, blob)
	if err != nil {
		t.Fatalf("OpenBlob: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("round trip mismatch")
	}
}

func TestOpenBlob_WrongKeyFails(t *testing.T) {
	key, err := crypto.NewContentKey()
	if err != nil {
		t.Fatalf("NewContentKey: %v", err)
	}
	other, err := crypto.NewContentKey()
	if err != nil {
		t.Fatalf("NewContentKey: %v", err)
	}
	blob, err := crypto.SealBlob(key, []byte("secret"))
	if err != nil {
		t.Fatalf("SealBlob: %v", err)
	}
	if _, err := crypto.OpenBlob(other, blob); err == nil {
		t.Fatalf("want error with wrong key, got nil")
	}
}

func TestOpenBlob_Truncated(t *testing.T) {
	key, err := crypto.NewContentKey()
	if err != nil {
		t.Fatalf("NewContentKey: %v", err)
	}
	if _, err := crypto.OpenBlob(key, []byte("short")); err == nil {
		t.Fatalf("want error for truncated blob, got nil")
	}
}
