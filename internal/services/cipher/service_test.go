package cipher_test

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"courier/internal/domain"
	"courier/internal/services/cipher"
)

// stubSessions is a SessionManager whose DecryptFrom reverses stubSession
// encrypts. It stands in for the ratchet so these tests exercise only the
// tagging and fallback logic.
type stubSessions struct {
	fail bool
}

func (s *stubSessions) Get(peer domain.UserID) domain.Session { return nil }

func (s *stubSessions) GetOrCreate(ctx context.Context, peer domain.UserID) (domain.Session, error) {
	return nil, nil
}

func (s *stubSessions) DecryptFrom(peer domain.UserID, wire []byte) ([]byte, error) {
	if s.fail {
		return nil, errors.New("no session")
	}
	out := make([]byte, len(wire))
	for i, b := range wire {
		out[i] = b ^ 0x2a
	}
	return out, nil
}

func (s *stubSessions) Drop(peer domain.UserID) {}

type stubSession struct{ peer domain.UserID }

func (s *stubSession) Peer() domain.UserID { return s.peer }

func (s *stubSession) Encrypt(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ 0x2a
	}
	return out, nil
}

func (s *stubSession) Decrypt(wire []byte) ([]byte, error) { return s.Encrypt(wire) }

func TestDegradedRoundTrip(t *testing.T) {
	svc := cipher.New(&stubSessions{fail: true}, zap.NewNop())

	for _, body := range []string{"", "hello", "  \t ", "hi 👋🌍", "line\nbreak"} {
		ct, err := svc.EncryptText(nil, body)
		if err != nil {
			t.Fatalf("EncryptText(%q): %v", body, err)
		}
		got, ok := svc.DecryptText("bob", ct)
		if !ok {
			t.Fatalf("DecryptText(%q): not ok", body)
		}
		if got != body {
			t.Fatalf("round trip: want %q, got %q", body, got)
		}
	}
}

func TestSecurePath_UsesSessionAndTag(t *testing.T) {
	svc := cipher.New(&stubSessions{}, zap.NewNop())

	ct, err := svc.EncryptText(&stubSession{peer: "bob"}, "secret")
	if err != nil {
		t.Fatalf("EncryptText: %v", err)
	}
	if ct[:3] != "s1:" {
		t.Fatalf("session encrypt not tagged secure: %q", ct)
	}
	got, ok := svc.DecryptText("bob", ct)
	if !ok || got != "secret" {
		t.Fatalf("DecryptText: got %q ok=%v", got, ok)
	}
}

func TestIsolationUnderCorruption(t *testing.T) {
	svc := cipher.New(&stubSessions{fail: true}, zap.NewNop())

	var wires []string
	for _, body := range []string{"one", "two", "three"} {
		ct, err := svc.EncryptText(nil, body)
		if err != nil {
			t.Fatalf("EncryptText: %v", err)
		}
		wires = append(wires, ct)
	}
	wires = append(wires, "p1:%%%not-base64%%%")

	var good, placeholders int
	for _, w := range wires {
		if _, ok := svc.DecryptText("bob", w); ok {
			good++
		} else {
			placeholders++
		}
	}
	if good != 3 || placeholders != 1 {
		t.Fatalf("want 3 plaintexts and 1 placeholder, got %d and %d", good, placeholders)
	}
}

func TestSecureDecrypt_FailsClosed(t *testing.T) {
	svc := cipher.New(&stubSessions{fail: true}, zap.NewNop())
	if _, ok := svc.DecryptText("bob", "s1:aGVsbG8="); ok {
		t.Fatalf("secure payload without a session must not decode")
	}
}
