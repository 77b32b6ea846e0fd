package crypto_test

import (
	"regexp"
	"testing"

	"courier/internal/crypto"
)

func TestFingerprint_Shape(t *testing.T) {
	pub := make([]byte, 32)
	pub[0] = 0x42

	fp := crypto.Fingerprint(pub)
	if !regexp.MustCompile(`^[0-9a-f]{4}(-[0-9a-f]{4}){4}$`).MatchString(fp) {
		t.Fatalf("fingerprint shape: %q", fp)
	}
	if fp != crypto.Fingerprint(pub) {
		t.Fatalf("fingerprint is not deterministic")
	}

	other := make([]byte, 32)
	other[0] = 0x43
	if fp == crypto.Fingerprint(other) {
		t.Fatalf("distinct keys share a fingerprint")
	}
}
