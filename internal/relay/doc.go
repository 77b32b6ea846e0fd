// Package relay provides the HTTP implementation of domain.RelayClient.
//
// The relay acts as a directory for published key bundles and as a
// store-and-forward plus push service for encrypted envelopes. This
// package offers a concrete HTTP client for interacting with such a
// server.
//
// Supported operations:
//   - Publishing this device's key bundle and fetching peers' bundles.
//   - Fetching conversation history.
//   - Sending envelopes (idempotent on the client-generated message id).
//   - Subscribing to a conversation's server-push event stream.
//   - Uploading and fetching encrypted attachment blobs.
//   - Fire-and-forget typing signals.
//
// Requests are JSON over HTTP and accept a context for cancellation and
// deadlines. Non-2xx statuses are returned as errors with the HTTP
// method, full URL, and status text to aid diagnostics. The event stream
// uses server-sent events; the returned channel closes on disconnect or
// cancellation.
package relay
