package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// fingerprintBytes is how much of the key hash survives into the
// rendered fingerprint: ten bytes gives five groups of four hex digits.
const fingerprintBytes = 10

// Fingerprint renders a public key as a short identifier users can
// compare out of band. Two people reading the same five groups aloud
// are holding the same key.
func Fingerprint(pub []byte) string {
	sum := sha256.Sum256(pub)
	digits := hex.EncodeToString(sum[:fingerprintBytes])

	groups := make([]string, 0, fingerprintBytes/2)
	for i := 0; i < len(digits); i += 4 {
		groups = append(groups, digits[i:i+4])
	}
	return strings.Join(groups, "-")
}
