// Package store provides file-based persistence for the client's local
// state.
//
// It contains concrete implementations of the domain storage interfaces,
// serialising data as JSON on disk. All methods are concurrency-safe via
// internal locking. Stored files live under the user's configured home
// directory.
//
// The package includes stores for:
//   - The device identity, encrypted at rest (DeviceFileStore)
//   - Pre-keys (PreKeyFileStore)
//   - Key bundle cache, own and fetched (BundleFileStore)
//
// Sessions and ratchet state are deliberately not stored here: they live
// for the process lifetime only and are re-established on demand.
package store
