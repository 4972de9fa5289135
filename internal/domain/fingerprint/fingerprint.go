// Package fingerprint computes the chained content hashes that identify
// cacheable build states.
package fingerprint

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Algorithm is the only hash algorithm fingerprints use.
const Algorithm = "sha256"

// hexLength is the expected hex string length for a sha256 digest.
const hexLength = 64

// Fingerprint errors.
var (
	ErrEmptyFingerprint   = errors.New("fingerprint cannot be empty")
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")
)

// Fingerprint identifies the build state after executing a prefix of
// steps. It is an immutable value object over a sha256 digest.
type Fingerprint struct {
	hash string
}

// New creates a Fingerprint from a hex-encoded sha256 digest.
func New(hash string) (Fingerprint, error) {
	if hash == "" {
		return Fingerprint{}, ErrEmptyFingerprint
	}

	if _, err := hex.DecodeString(hash); err != nil {
		return Fingerprint{}, fmt.Errorf("%w: invalid hex encoding", ErrInvalidFingerprint)
	}

	if len(hash) != hexLength {
		return Fingerprint{}, fmt.Errorf("%w: expected %d chars, got %d",
			ErrInvalidFingerprint, hexLength, len(hash))
	}

	return Fingerprint{hash: hash}, nil
}

// FromSum creates a Fingerprint from a raw sha256 sum.
func FromSum(sum [32]byte) Fingerprint {
	return Fingerprint{hash: hex.EncodeToString(sum[:])}
}

// Parse parses a fingerprint in "sha256:hex" format.
func Parse(s string) (Fingerprint, error) {
	if s == "" {
		return Fingerprint{}, ErrEmptyFingerprint
	}

	algorithm, hash, ok := strings.Cut(s, ":")
	if !ok {
		return Fingerprint{}, fmt.Errorf("%w: missing colon separator", ErrInvalidFingerprint)
	}
	if algorithm != Algorithm {
		return Fingerprint{}, fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidFingerprint, algorithm)
	}

	return New(hash)
}

// Hex returns the hex-encoded digest.
func (f Fingerprint) Hex() string {
	return f.hash
}

// String returns the fingerprint in "sha256:hex" format.
func (f Fingerprint) String() string {
	return Algorithm + ":" + f.hash
}

// Short returns a 12-character digest prefix for display.
func (f Fingerprint) Short() string {
	if len(f.hash) < 12 {
		return f.hash
	}
	return f.hash[:12]
}

// Equal reports whether two fingerprints are identical.
func (f Fingerprint) Equal(other Fingerprint) bool {
	return f.hash == other.hash
}

// IsZero returns true if this is a zero-value Fingerprint.
func (f Fingerprint) IsZero() bool {
	return f.hash == ""
}
