// Package session owns the cryptographic sessions this device holds with
// remote peers. Sessions are established lazily: the first outbound
// message to a peer triggers a bundle fetch and an X3DH handshake, and
// the first inbound secure message from an unknown peer bootstraps the
// responder side from the handshake parameters it carries.
//
// Sessions live in memory only, bounded by an LRU cache, and are never
// written to disk. When establishment is impossible (the peer has not
// published a bundle, or the handshake fails) the manager reports
// degraded mode rather than an error so messaging can continue
// unencrypted end to end.
package session
