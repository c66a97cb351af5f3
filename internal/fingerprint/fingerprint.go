// Package fingerprint derives the stored identity of a tested number.
//
// A fingerprint is the SHA-256 digest of the number's canonical base-10
// text, so the store never holds full decimal values and any tool that
// can hash a decimal string can interoperate with it.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// Size is the length of a fingerprint in bytes.
const Size = sha256.Size

// Fingerprint identifies a tested number.
type Fingerprint [Size]byte

// New derives the fingerprint of n. The digest input is the UTF-8 decimal
// representation with no sign, no leading zeros and no separators. n must
// be positive; n is not modified.
func New(n *big.Int) Fingerprint {
	return sha256.Sum256([]byte(n.Text(10)))
}

// FromBytes converts a raw digest read back from storage.
func FromBytes(b []byte) (Fingerprint, error) {
	var fp Fingerprint
	if len(b) != Size {
		return fp, fmt.Errorf("fingerprint: want %d bytes, got %d", Size, len(b))
	}
	copy(fp[:], b)
	return fp, nil
}

// Bytes returns the digest as a slice for use as a query parameter.
func (f Fingerprint) Bytes() []byte { return f[:] }

// Hex returns the digest in lowercase hexadecimal.
func (f Fingerprint) Hex() string { return hex.EncodeToString(f[:]) }
