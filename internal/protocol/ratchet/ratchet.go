package ratchet

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/util/memzero"
)

const (
	aeadKeySize = 32
	nonceSize   = chacha20poly1305.NonceSize

	// maxSkippedKeys caps retained out-of-order message keys so a
	// malicious header cannot make us derive unbounded state.
	maxSkippedKeys = 1000
)

var (
	errChainUninitialised = errors.New("ratchet chain key is uninitialised")
	errTooManySkipped     = errors.New("too many skipped message keys")
)

// ErrMessageAuthentication reports a ciphertext that failed the AEAD
// check. The chain state is unchanged: only this one message is lost.
var ErrMessageAuthentication = errors.New("message failed authentication")

// NewInitiator seeds a sending chain from the X3DH root key and the
// peer's identity public key.
func NewInitiator(root []byte, peerIdentity domain.X25519Public) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(priv, peerIdentity)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, sendCK := kdfRoot(root, dh[:])
	memzero.Key(&dh)

	return domain.RatchetState{
		RootKey:              newRoot,
		DiffieHellmanPrivate: priv,
		DiffieHellmanPublic:  pub,
		// Placeholder until the first remote ratchet pub arrives.
		PeerDiffieHellmanPublic: peerIdentity,
		SendChainKey:            sendCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// NewResponder seeds a receiving chain from the X3DH root key, our
// identity private key and the sender's first ratchet public key.
func NewResponder(
	root []byte,
	ourIdentityPriv domain.X25519Private,
	senderRatchetPub domain.X25519Public,
) (domain.RatchetState, error) {
	priv, pub, err := crypto.GenerateX25519()
	if err != nil {
		return domain.RatchetState{}, err
	}
	dh, err := crypto.DH(ourIdentityPriv, senderRatchetPub)
	if err != nil {
		return domain.RatchetState{}, err
	}
	newRoot, recvCK := kdfRoot(root, dh[:])
	memzero.Key(&dh)

	return domain.RatchetState{
		RootKey:                 newRoot,
		DiffieHellmanPrivate:    priv,
		DiffieHellmanPublic:     pub,
		PeerDiffieHellmanPublic: senderRatchetPub,
		ReceiveChainKey:         recvCK,
		SkippedKeys:             make(map[string][]byte),
	}, nil
}

// Encrypt produces a header and ciphertext, auto-stepping the DH ratchet
// on the first send after responding.
func Encrypt(st *domain.RatchetState, ad, plaintext []byte) (domain.RatchetHeader, []byte, error) {
	if len(st.SendChainKey) == 0 {
		if err := stepSendChain(st); err != nil {
			return domain.RatchetHeader{}, nil, err
		}
	}

	mk, err := nextSendKey(st)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	h := domain.RatchetHeader{
		DiffieHellmanPublicKey: st.DiffieHellmanPublic.Slice(),
		PreviousChainLength:    st.PreviousChainLength,
		MessageIndex:           st.SendMessageIndex,
	}

	ct, err := seal(mk, h, ad, plaintext)
	memzero.Zero(mk)
	if err != nil {
		return domain.RatchetHeader{}, nil, err
	}
	st.SendMessageIndex++
	return h, ct, nil
}

// Decrypt handles skipped keys, performs a DH ratchet step on new remote
// public keys, then opens the message. All derivation happens on a
// scratch copy of the state, committed only once the AEAD check passes:
// a forged or corrupted ciphertext leaves the chain exactly as it was.
func Decrypt(
	st *domain.RatchetState,
	ad []byte,
	header domain.RatchetHeader,
	ciphertext []byte,
) ([]byte, error) {
	work := cloneState(st)
	pt, err := advanceAndOpen(&work, ad, header, ciphertext)
	if err != nil {
		return nil, err
	}
	*st = work
	return pt, nil
}

// cloneState copies the state deeply enough that mutating (or zeroing)
// anything through the copy cannot touch the original.
func cloneState(st *domain.RatchetState) domain.RatchetState {
	c := *st
	c.SkippedKeys = make(map[string][]byte, len(st.SkippedKeys))
	for id, mk := range st.SkippedKeys {
		cp := make([]byte, len(mk))
		copy(cp, mk)
		c.SkippedKeys[id] = cp
	}
	return c
}

func advanceAndOpen(
	st *domain.RatchetState,
	ad []byte,
	header domain.RatchetHeader,
	ciphertext []byte,
) ([]byte, error) {
	samePub := equal32(st.PeerDiffieHellmanPublic[:], header.DiffieHellmanPublicKey)

	// Same remote pub: the message may belong to the current receiving
	// chain, possibly behind or ahead of our index.
	if samePub {
		if err := skipUntil(st, header.MessageIndex); err != nil {
			return nil, err
		}
		keyID := skippedKeyID(st.PeerDiffieHellmanPublic, header.MessageIndex)
		if mk, ok := st.SkippedKeys[keyID]; ok {
			delete(st.SkippedKeys, keyID)
			pt, err := open(mk, header, ad, ciphertext)
			memzero.Zero(mk)
			if err != nil {
				return nil, err
			}
			if header.MessageIndex >= st.ReceiveMessageIndex {
				st.ReceiveMessageIndex = header.MessageIndex + 1
			}
			return pt, nil
		}
	}

	// New remote pub: close out the old receiving chain, then advance
	// both chains from a fresh root.
	if !samePub {
		if err := skipUntil(st, header.PreviousChainLength); err != nil {
			return nil, err
		}

		var newPeer domain.X25519Public
		copy(newPeer[:], header.DiffieHellmanPublicKey)

		dh, err := crypto.DH(st.DiffieHellmanPrivate, newPeer)
		if err != nil {
			return nil, err
		}
		rootA, recvCK := kdfRoot(st.RootKey, dh[:])
		memzero.Key(&dh)

		newPriv, newPub, err := crypto.GenerateX25519()
		if err != nil {
			return nil, err
		}
		dh2, err := crypto.DH(newPriv, newPeer)
		if err != nil {
			return nil, err
		}
		rootB, sendCK := kdfRoot(rootA, dh2[:])
		memzero.Key(&dh2)

		st.PreviousChainLength = st.SendMessageIndex
		st.SendMessageIndex, st.ReceiveMessageIndex = 0, 0
		st.RootKey = rootB
		st.DiffieHellmanPrivate, st.DiffieHellmanPublic = newPriv, newPub
		st.PeerDiffieHellmanPublic = newPeer
		st.SendChainKey, st.ReceiveChainKey = sendCK, recvCK

		if err := skipUntil(st, header.MessageIndex); err != nil {
			return nil, err
		}
		keyID := skippedKeyID(newPeer, header.MessageIndex)
		if mk, ok := st.SkippedKeys[keyID]; ok {
			delete(st.SkippedKeys, keyID)
			pt, err := open(mk, header, ad, ciphertext)
			memzero.Zero(mk)
			if err != nil {
				return nil, err
			}
			st.ReceiveMessageIndex = header.MessageIndex + 1
			return pt, nil
		}
	}

	mk, err := nextRecvKey(st)
	if err != nil {
		return nil, err
	}
	pt, err := open(mk, header, ad, ciphertext)
	memzero.Zero(mk)
	if err != nil {
		return nil, err
	}
	st.ReceiveMessageIndex++
	return pt, nil
}

// stepSendChain performs the DH ratchet step that gives a responder its
// first sending chain.
func stepSendChain(st *domain.RatchetState) error {
	st.PreviousChainLength = st.SendMessageIndex
	st.SendMessageIndex = 0

	newPriv, newPub, err := crypto.GenerateX25519()
	if err != nil {
		return err
	}
	dh, err := crypto.DH(newPriv, st.PeerDiffieHellmanPublic)
	if err != nil {
		return err
	}
	newRoot, sendCK := kdfRoot(st.RootKey, dh[:])
	memzero.Key(&dh)

	st.RootKey = newRoot
	st.DiffieHellmanPrivate, st.DiffieHellmanPublic = newPriv, newPub
	st.SendChainKey = sendCK
	return nil
}

// skipUntil derives and retains message keys for indices our receive
// chain has not reached, so out-of-order arrivals still decrypt.
func skipUntil(st *domain.RatchetState, until uint32) error {
	if len(st.ReceiveChainKey) == 0 {
		return nil
	}
	for st.ReceiveMessageIndex < until {
		if len(st.SkippedKeys) >= maxSkippedKeys {
			return errTooManySkipped
		}
		nextCK, mk := kdfChain(st.ReceiveChainKey)
		st.SkippedKeys[skippedKeyID(st.PeerDiffieHellmanPublic, st.ReceiveMessageIndex)] = mk
		st.ReceiveChainKey = nextCK
		st.ReceiveMessageIndex++
	}
	return nil
}

// --- AEAD helpers ---

func seal(mk []byte, header domain.RatchetHeader, ad, plaintext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	return aead.Seal(nil, nonce, plaintext, append(ad, headerBytes(header)...)), nil
}

func open(mk []byte, header domain.RatchetHeader, ad, ciphertext []byte) ([]byte, error) {
	aead, err := chacha20poly1305.New(mk[:aeadKeySize])
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, nonceSize)
	binary.BigEndian.PutUint32(nonce[nonceSize-4:], header.MessageIndex)
	pt, err := aead.Open(nil, nonce, ciphertext, append(ad, headerBytes(header)...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMessageAuthentication, err)
	}
	return pt, nil
}

func headerBytes(h domain.RatchetHeader) []byte {
	out := make([]byte, 0, len(h.DiffieHellmanPublicKey)+8)
	out = append(out, h.DiffieHellmanPublicKey...)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], h.PreviousChainLength)
	out = append(out, b[:]...)
	binary.BigEndian.PutUint32(b[:], h.MessageIndex)
	out = append(out, b[:]...)
	return out
}

// --- KDFs (HKDF-SHA256 with labels) ---

func kdfRoot(rk, dh []byte) (newRK, ck []byte) {
	r := hkdf.New(sha256.New, dh, rk, []byte("courier-dr-root"))
	newRK = make([]byte, 32)
	ck = make([]byte, 32)
	_, _ = io.ReadFull(r, newRK)
	_, _ = io.ReadFull(r, ck)
	return
}

func kdfChain(ck []byte) (nextCK, mk []byte) {
	r := hkdf.New(sha256.New, ck, nil, []byte("courier-dr-chain"))
	nextCK = make([]byte, 32)
	mk = make([]byte, 32)
	_, _ = io.ReadFull(r, nextCK)
	_, _ = io.ReadFull(r, mk)
	return
}

func nextSendKey(st *domain.RatchetState) ([]byte, error) {
	if len(st.SendChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfChain(st.SendChainKey)
	st.SendChainKey = nextCK
	return mk, nil
}

func nextRecvKey(st *domain.RatchetState) ([]byte, error) {
	if len(st.ReceiveChainKey) == 0 {
		return nil, errChainUninitialised
	}
	nextCK, mk := kdfChain(st.ReceiveChainKey)
	st.ReceiveChainKey = nextCK
	return mk, nil
}

func skippedKeyID(pub domain.X25519Public, n uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], n)
	return hex.EncodeToString(pub[:]) + ":" + hex.EncodeToString(b[:])
}

func equal32(a []byte, b []byte) bool {
	if len(a) != 32 || len(b) != 32 {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
