// Package relayserver is the relay and directory side of courier: it
// stores published key bundles and confirmed envelopes in Postgres,
// keeps encrypted attachment blobs on disk, and fans out live events
// per conversation over Redis pub/sub to SSE subscribers.
//
// The server never sees plaintext. Message bodies and attachment blobs
// arrive already encrypted (or degraded-encoded) by clients.
package relayserver
