// Package testdata provides deterministic pseudorandom data and common size
// tables for tests and benchmarks.
package testdata

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
)

// DRBG is a deterministic byte stream seeded from a label. Distinct labels
// produce independent streams.
type DRBG struct {
	stream cipher.Stream
}

// New returns a DRBG seeded from label.
func New(label string) *DRBG {
	seed := sha256.Sum256([]byte(label))
	block, err := aes.NewCipher(seed[:16])
	if err != nil {
		panic(err)
	}

	var iv [16]byte
	return &DRBG{stream: cipher.NewCTR(block, iv[:])}
}

// Data returns the next n bytes of the stream.
func (d *DRBG) Data(n int) []byte {
	out := make([]byte, n)
	d.stream.XORKeyStream(out, out)
	return out
}

// Sizes is the standard benchmark size table.
var Sizes = []struct {
	Name string
	N    int
}{
	{"64B", 64},
	{"1KiB", 1 << 10},
	{"8KiB", 8 << 10},
	{"64KiB", 64 << 10},
	{"1MiB", 1 << 20},
}
