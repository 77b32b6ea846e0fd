// Package memzero scrubs secret key material from buffers that are done
// being used.
package memzero

// Zero clears b in place. Chain keys, DH outputs and derived message
// keys pass through here once they have been folded into the next state,
// so the heap holds no more secrets than the protocol needs.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Key clears a fixed-size key array in place.
func Key(k *[32]byte) {
	Zero(k[:])
}
