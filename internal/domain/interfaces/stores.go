package interfaces

import domaintypes "courier/internal/domain/types"

// DeviceStore persists the local device identity, encrypted at rest.
type DeviceStore interface {
	SaveDeviceIdentity(passphrase string, id domaintypes.DeviceIdentity) error
	LoadDeviceIdentity(passphrase string) (domaintypes.DeviceIdentity, bool, error)
}

// PreKeyStore manages signed and one-time pre-keys on disk.
type PreKeyStore interface {
	// Signed pre-key
	SaveSignedPreKey(
		id domaintypes.SignedPreKeyID,
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
	) error
	LoadSignedPreKey(
		id domaintypes.SignedPreKeyID,
	) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		sig []byte,
		ok bool,
		err error,
	)

	// One-time pre-keys
	SaveOneTimePreKeys(pairs []domaintypes.OneTimePreKeyPair) error
	ConsumeOneTimePreKey(id domaintypes.OneTimePreKeyID) (
		priv domaintypes.X25519Private,
		pub domaintypes.X25519Public,
		ok bool,
		err error,
	)
	ListOneTimePreKeyPublics() ([]domaintypes.OneTimePreKeyPublic, error)

	// Current signed pre-key selection
	SetCurrentSignedPreKeyID(id domaintypes.SignedPreKeyID) error
	CurrentSignedPreKeyID() (domaintypes.SignedPreKeyID, bool, error)
}

// BundleCacheStore caches key bundles: the one this device last published
// and the ones fetched for peers.
type BundleCacheStore interface {
	SaveKeyBundle(bundle domaintypes.KeyBundle) error
	LoadKeyBundle(user domaintypes.UserID) (domaintypes.KeyBundle, bool, error)
}
