package fingerprint

import (
	"crypto/sha256"
	"hash"

	"github.com/felixgeelhaar/stratum/internal/domain/manifest"
)

// baseSeedLabel namespaces the chain seed so a base image identifier can
// never collide with a step digest.
const baseSeedLabel = "stratum/base-image"

// Seed returns the chain fingerprint identifying a declared base image.
// The first step of every manifest chains from this value.
func Seed(baseImage string) Fingerprint {
	h := sha256.New()
	writeField(h, []byte(baseSeedLabel))
	writeField(h, []byte(baseImage))
	return sumOf(h)
}

// Next computes the fingerprint of a step from its predecessor's
// fingerprint and the step's own canonical content. Any change to the
// step or any predecessor therefore changes this and every later
// fingerprint.
func Next(prev Fingerprint, step manifest.Step) Fingerprint {
	h := sha256.New()
	writeField(h, []byte(prev.Hex()))
	writeField(h, []byte(step.Kind().String()))
	writeField(h, []byte(step.Text()))
	for _, arg := range step.Args() {
		writeField(h, []byte(arg))
	}
	return sumOf(h)
}

// Chain computes the fingerprint of every step in the manifest, in
// ordinal order. Pure function: two parses of the same manifest yield
// byte-identical chains.
func Chain(m *manifest.Manifest) []Fingerprint {
	prev := Seed(m.BaseImage())

	steps := m.Steps()
	chain := make([]Fingerprint, 0, len(steps))
	for _, step := range steps {
		prev = Next(prev, step)
		chain = append(chain, prev)
	}

	return chain
}

// writeField writes a length-prefixed field so that field boundaries
// are unambiguous regardless of content.
func writeField(h hash.Hash, data []byte) {
	length := uint64(len(data))
	prefix := []byte{
		byte(length >> 56),
		byte(length >> 48),
		byte(length >> 40),
		byte(length >> 32),
		byte(length >> 24),
		byte(length >> 16),
		byte(length >> 8),
		byte(length),
	}
	_, _ = h.Write(prefix)
	_, _ = h.Write(data)
}

// sumOf finalizes a running hash into a Fingerprint.
func sumOf(h hash.Hash) Fingerprint {
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return FromSum(sum)
}
