package ratchet_test

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"testing"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/protocol/ratchet"
)

// newPair builds a linked initiator/responder ratchet pair over a shared
// root key, the way a real session comes out of X3DH.
func newPair(t *testing.T) (init, resp domain.RatchetState) {
	t.Helper()

	root := make([]byte, 32)
	if _, err := rand.Read(root); err != nil {
		t.Fatalf("rand: %v", err)
	}
	respPriv, respPub, err := crypto.GenerateX25519()
	if err != nil {
		t.Fatalf("GenerateX25519: %v", err)
	}

	init, err = ratchet.NewInitiator(root, respPub)
	if err != nil {
		t.Fatalf("NewInitiator: %v", err)
	}
	resp, err = ratchet.NewResponder(root, respPriv, init.DiffieHellmanPublic)
	if err != nil {
		t.Fatalf("NewResponder: %v", err)
	}
	return init, resp
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	a, b := newPair(t)

	msg := []byte("the quick brown fox")
	h, ct, err := ratchet.Encrypt(&a, nil, msg)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	pt, err := ratchet.Decrypt(&b, nil, h, ct)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if !bytes.Equal(pt, msg) {
		t.Fatalf("round trip: want %q, got %q", msg, pt)
	}
}

func TestEncryptDecrypt_Conversation(t *testing.T) {
	a, b := newPair(t)

	// Alternating directions exercises the DH ratchet steps.
	for i := 0; i < 6; i++ {
		var (
			sender, receiver *domain.RatchetState
		)
		if i%2 == 0 {
			sender, receiver = &a, &b
		} else {
			sender, receiver = &b, &a
		}
		msg := []byte(fmt.Sprintf("message %d", i))
		h, ct, err := ratchet.Encrypt(sender, nil, msg)
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		pt, err := ratchet.Decrypt(receiver, nil, h, ct)
		if err != nil {
			t.Fatalf("Decrypt %d: %v", i, err)
		}
		if !bytes.Equal(pt, msg) {
			t.Fatalf("message %d: want %q, got %q", i, msg, pt)
		}
	}
}

func TestDecrypt_OutOfOrder(t *testing.T) {
	a, b := newPair(t)

	type frame struct {
		h  domain.RatchetHeader
		ct []byte
	}
	var frames []frame
	for i := 0; i < 3; i++ {
		h, ct, err := ratchet.Encrypt(&a, nil, []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		frames = append(frames, frame{h, ct})
	}

	// Deliver 2, 0, 1.
	for _, i := range []int{2, 0, 1} {
		pt, err := ratchet.Decrypt(&b, nil, frames[i].h, frames[i].ct)
		if err != nil {
			t.Fatalf("Decrypt frame %d: %v", i, err)
		}
		want := fmt.Sprintf("m%d", i)
		if string(pt) != want {
			t.Fatalf("frame %d: want %q, got %q", i, want, pt)
		}
	}
}

func TestDecrypt_TamperedMessageLeavesChainIntact(t *testing.T) {
	a, b := newPair(t)

	type frame struct {
		h  domain.RatchetHeader
		ct []byte
	}
	var frames []frame
	for i := 0; i < 3; i++ {
		h, ct, err := ratchet.Encrypt(&a, nil, []byte(fmt.Sprintf("m%d", i)))
		if err != nil {
			t.Fatalf("Encrypt %d: %v", i, err)
		}
		frames = append(frames, frame{h, ct})
	}

	if _, err := ratchet.Decrypt(&b, nil, frames[0].h, frames[0].ct); err != nil {
		t.Fatalf("Decrypt m0: %v", err)
	}

	tampered := append([]byte(nil), frames[1].ct...)
	tampered[0] ^= 0x01
	_, err := ratchet.Decrypt(&b, nil, frames[1].h, tampered)
	if err == nil {
		t.Fatalf("want error decrypting tampered m1, got nil")
	}
	if !errors.Is(err, ratchet.ErrMessageAuthentication) {
		t.Fatalf("want ErrMessageAuthentication, got %v", err)
	}

	// The failed decrypt must not have advanced the receiving chain:
	// the next valid message still opens.
	pt, err := ratchet.Decrypt(&b, nil, frames[2].h, frames[2].ct)
	if err != nil {
		t.Fatalf("Decrypt m2 after tampered m1: %v", err)
	}
	if string(pt) != "m2" {
		t.Fatalf("m2: want %q, got %q", "m2", pt)
	}

	// Even the original m1 is still recoverable once it arrives clean.
	pt, err = ratchet.Decrypt(&b, nil, frames[1].h, frames[1].ct)
	if err != nil {
		t.Fatalf("Decrypt clean m1: %v", err)
	}
	if string(pt) != "m1" {
		t.Fatalf("m1: want %q, got %q", "m1", pt)
	}
}

func TestDecrypt_TamperedCiphertextFails(t *testing.T) {
	a, b := newPair(t)

	h, ct, err := ratchet.Encrypt(&a, nil, []byte("secret"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0x01
	if _, err := ratchet.Decrypt(&b, nil, h, ct); err == nil {
		t.Fatalf("want error decrypting tampered ciphertext, got nil")
	}
}
