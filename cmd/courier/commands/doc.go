// Package commands defines the courier CLI and wires dependencies for
// subcommands.
//
// Commands
//
//   - init         Create the local device identity and key material
//   - fingerprint  Print the identity fingerprint
//   - register     Publish your key bundle to the relay
//   - send         Encrypt and send one message
//   - sendfile     Encrypt and send a file
//   - history      Fetch and decrypt a conversation's history
//   - open         Open a live conversation in the terminal
//
// # Implementation
//
// The root command builds a dependency graph (stores, services, relay
// client) before any subcommand runs, so handlers share one app context
// with connection pooling.
package commands
