// Package payload defines the tagged transport encoding for message
// bodies and wrapped attachment keys.
//
// A payload is either Secure (ratchet ciphertext) or Degraded (a
// reversible, text-safe encoding used before a session exists). The two
// are distinguished by a scheme tag on the wire, so a caller can never
// mistake a degraded body for an encrypted one by convention alone.
// Degraded payloads are recoverable but offer no secrecy against an
// observer of the transport; user interfaces should warn accordingly.
package payload

import (
	"encoding/base64"
	"errors"
	"strings"
)

// Scheme tags a payload's encoding on the wire.
type Scheme string

const (
	// SchemeSecure marks ratchet-encrypted payload data.
	SchemeSecure Scheme = "s1"
	// SchemeDegraded marks the reversible fallback encoding.
	SchemeDegraded Scheme = "p1"
)

// ErrMalformed is returned when a wire string carries an unknown scheme
// tag or undecodable body.
var ErrMalformed = errors.New("malformed payload encoding")

// Payload is the tagged union of the two transport encodings.
type Payload struct {
	Scheme Scheme
	Data   []byte
}

// Secure wraps ratchet ciphertext.
func Secure(data []byte) Payload { return Payload{Scheme: SchemeSecure, Data: data} }

// Degraded wraps raw plaintext bytes in the fallback encoding.
func Degraded(data []byte) Payload { return Payload{Scheme: SchemeDegraded, Data: data} }

// IsSecure reports whether the payload carries ratchet ciphertext.
func (p Payload) IsSecure() bool { return p.Scheme == SchemeSecure }

// Encode renders the payload as a text-safe wire string: the scheme tag,
// a colon, then standard base64 of the data.
func (p Payload) Encode() string {
	return string(p.Scheme) + ":" + base64.StdEncoding.EncodeToString(p.Data)
}

// Decode parses a wire string produced by Encode.
func Decode(s string) (Payload, error) {
	tag, body, ok := strings.Cut(s, ":")
	if !ok {
		return Payload{}, ErrMalformed
	}
	scheme := Scheme(tag)
	switch scheme {
	case SchemeSecure, SchemeDegraded:
	default:
		return Payload{}, ErrMalformed
	}
	data, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, ErrMalformed
	}
	return Payload{Scheme: scheme, Data: data}, nil
}
