package payload_test

import (
	"errors"
	"strings"
	"testing"

	"courier/internal/payload"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	cases := []struct {
		name string
		p    payload.Payload
	}{
		{"secure", payload.Secure([]byte{0x00, 0x01, 0xff})},
		{"degraded", payload.Degraded([]byte("hello"))},
		{"degraded empty", payload.Degraded(nil)},
		{"degraded whitespace", payload.Degraded([]byte("  \t "))},
		{"degraded emoji", payload.Degraded([]byte("hi 👋🌍"))},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := payload.Decode(tc.p.Encode())
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if got.Scheme != tc.p.Scheme {
				t.Fatalf("scheme: want %q, got %q", tc.p.Scheme, got.Scheme)
			}
			if string(got.Data) != string(tc.p.Data) {
				t.Fatalf("data: want %q, got %q", tc.p.Data, got.Data)
			}
		})
	}
}

func TestEncode_TagPrefix(t *testing.T) {
	if s := payload.Secure([]byte("x")).Encode(); !strings.HasPrefix(s, "s1:") {
		t.Fatalf("secure payload not tagged: %q", s)
	}
	if s := payload.Degraded([]byte("x")).Encode(); !strings.HasPrefix(s, "p1:") {
		t.Fatalf("degraded payload not tagged: %q", s)
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, in := range []string{
		"",
		"no tag here",
		"x9:aGVsbG8=",
		"s1:not!!base64",
	} {
		if _, err := payload.Decode(in); !errors.Is(err, payload.ErrMalformed) {
			t.Fatalf("Decode(%q): want ErrMalformed, got %v", in, err)
		}
	}
}
