// Package crypto exposes the minimal primitives shared by the courier
// services.
//
// Contents
//
//   - X25519 key generation, clamping and Diffie–Hellman (GenerateX25519, DH)
//   - Ed25519 key generation, signing and verification (GenerateEd25519,
//     SignEd25519, VerifyEd25519)
//   - Per-attachment content keys and blob sealing (NewContentKey,
//     SealBlob, OpenBlob)
//   - Short public-key fingerprints for display (Fingerprint)
//
// All functions return fixed-size array types defined in internal/domain
// to avoid accidental reallocations. Callers should treat returned secrets
// as sensitive and rely on memzero when practical to reduce lifetime in
// memory.
package crypto
