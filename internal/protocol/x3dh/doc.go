// Package x3dh implements the X3DH key agreement used to bootstrap a
// Double Ratchet session between two parties.
//
// The initiator verifies the signed pre-key signature in the peer's
// published bundle, generates an ephemeral key pair, computes the DH set
// (IKa·SPKb, EKa·IKb, EKa·SPKb[, EKa·OPKb]) and derives a 32-byte root
// key over the concatenated transcript. The responder receives the
// handshake parameters in the first envelope's PreKeyMessage, looks up
// the matching signed pre-key, optionally consumes the one-time pre-key,
// and derives the identical root key from the symmetric DH set.
//
// Only public material crosses the wire. One-time pre-keys, when present,
// improve forward secrecy because the handshake mixes in a value that is
// deleted after first use.
package x3dh
