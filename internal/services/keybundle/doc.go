// Package keybundle manages the device's identifying key material and the
// directory of peers' published bundles.
//
// It provisions the local identity and pre-keys on first use, publishes
// the public bundle to the directory service, and fetches peers' bundles
// for session establishment. A peer that has never published yields
// domain.ErrPeerBundleUnavailable, which callers treat as "cannot
// establish a session yet" rather than a hard failure.
package keybundle
