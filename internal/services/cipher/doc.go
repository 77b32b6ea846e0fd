// Package cipher turns message text into transport payloads and back. It
// prefers the peer session's ratchet and falls back to the tagged
// degraded encoding when no session exists, so a conversation is never
// blocked on key exchange.
package cipher
