package x3dh

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"

	"courier/internal/crypto"
	"courier/internal/domain"
	"courier/internal/util/memzero"
)

const rootKeySize = 32

// kdfInfo domain-separates the root key derivation.
var kdfInfo = []byte("courier-x3dh-v1")

// ErrBadSignedPreKey is returned when the signed pre-key signature in a
// bundle fails verification.
var ErrBadSignedPreKey = errors.New("signed pre-key signature verification failed")

// InitiatorRoot runs X3DH as the initiator against a peer's published
// bundle. It returns the root key, the pre-key identifiers that were
// targeted, and the ephemeral public key to echo in the first
// PreKeyMessage.
func InitiatorRoot(
	id domain.DeviceIdentity,
	bundle domain.KeyBundle,
) (
	rootKey []byte,
	signedPreKeyID domain.SignedPreKeyID,
	oneTimePreKeyID domain.OneTimePreKeyID,
	ephemeralPub domain.X25519Public,
	err error,
) {
	if !crypto.VerifyEd25519(bundle.SigningKey, bundle.SignedPreKey.Slice(), bundle.SignedPreKeySignature) {
		err = ErrBadSignedPreKey
		return
	}

	ephPriv, ephPub, err := crypto.GenerateX25519()
	if err != nil {
		return
	}

	dh1, err := crypto.DH(id.XPriv, bundle.SignedPreKey) // DH(IKa, SPKb)
	if err != nil {
		return
	}
	dh2, err := crypto.DH(ephPriv, bundle.IdentityKey) // DH(EKa, IKb)
	if err != nil {
		return
	}
	dh3, err := crypto.DH(ephPriv, bundle.SignedPreKey) // DH(EKa, SPKb)
	if err != nil {
		return
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	// Target the first one-time pre-key when the bundle offers any.
	if len(bundle.OneTimePreKeys) > 0 {
		opk := bundle.OneTimePreKeys[0]
		var dh4 [32]byte
		dh4, err = crypto.DH(ephPriv, opk.Pub) // DH(EKa, OPKb)
		if err != nil {
			return
		}
		transcript = append(transcript, dh4[:]...)
		oneTimePreKeyID = opk.ID
	}

	rootKey = deriveRoot(transcript)
	memzero.Zero(transcript)
	return rootKey, bundle.SignedPreKeyID, oneTimePreKeyID, ephPub, nil
}

// ResponderRoot derives the same root key on the receiving side from the
// handshake parameters of the first envelope. opkPriv is nil when the
// initiator did not target a one-time pre-key.
func ResponderRoot(
	id domain.DeviceIdentity,
	spkPriv domain.X25519Private,
	opkPriv *domain.X25519Private,
	pk domain.PreKeyMessage,
) ([]byte, error) {
	dh1, err := crypto.DH(spkPriv, pk.InitiatorIdentityKey) // DH(SPKb, IKa)
	if err != nil {
		return nil, fmt.Errorf("dh spk/ik: %w", err)
	}
	dh2, err := crypto.DH(id.XPriv, pk.EphemeralKey) // DH(IKb, EKa)
	if err != nil {
		return nil, fmt.Errorf("dh ik/ek: %w", err)
	}
	dh3, err := crypto.DH(spkPriv, pk.EphemeralKey) // DH(SPKb, EKa)
	if err != nil {
		return nil, fmt.Errorf("dh spk/ek: %w", err)
	}

	transcript := make([]byte, 0, 32*4)
	transcript = append(transcript, dh1[:]...)
	transcript = append(transcript, dh2[:]...)
	transcript = append(transcript, dh3[:]...)

	if opkPriv != nil {
		dh4, err := crypto.DH(*opkPriv, pk.EphemeralKey) // DH(OPKb, EKa)
		if err != nil {
			return nil, fmt.Errorf("dh opk/ek: %w", err)
		}
		transcript = append(transcript, dh4[:]...)
	}

	root := deriveRoot(transcript)
	memzero.Zero(transcript)
	return root, nil
}

func deriveRoot(transcript []byte) []byte {
	r := hkdf.New(sha256.New, transcript, nil, kdfInfo)
	root := make([]byte, rootKeySize)
	_, _ = io.ReadFull(r, root)
	return root
}
