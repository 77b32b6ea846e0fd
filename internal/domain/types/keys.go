package types

// X25519Public is a Curve25519 public key.
type X25519Public [32]byte

// Slice returns the key as a []byte.
func (p X25519Public) Slice() []byte { return p[:] }

// IsZero reports whether the key is unset.
func (p X25519Public) IsZero() bool { return p == X25519Public{} }

// X25519Private is a Curve25519 private key.
type X25519Private [32]byte

// Slice returns the key as a []byte.
func (k X25519Private) Slice() []byte { return k[:] }

// Ed25519Public is an Ed25519 signing public key.
type Ed25519Public [32]byte

// Slice returns the key as a []byte.
func (p Ed25519Public) Slice() []byte { return p[:] }

// Ed25519Private is an Ed25519 signing private key.
type Ed25519Private [64]byte

// Slice returns the key as a []byte.
func (k Ed25519Private) Slice() []byte { return k[:] }

// DeviceIdentity is the local device's long-term key material plus the ids
// it was provisioned under. It is generated once per device, persisted
// encrypted at rest, and never rotated within a process lifetime.
type DeviceIdentity struct {
	UserID   UserID         `json:"user_id"`
	DeviceID DeviceID       `json:"device_id"`
	XPub     X25519Public   `json:"x_pub"`
	XPriv    X25519Private  `json:"x_priv"`
	EdPub    Ed25519Public  `json:"ed_pub"`
	EdPriv   Ed25519Private `json:"ed_priv"`
}
