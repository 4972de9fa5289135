// Package snapshot provides the filesystem-state handle produced by
// executing a prefix of build steps, plus the tree utilities used to
// clone and digest that state.
package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// Snapshot is an opaque handle to the filesystem state produced after
// executing a prefix of steps. The executor owns it transiently while
// producing it; once committed it belongs to the cache store.
type Snapshot struct {
	ID        string    `json:"id"`
	Root      string    `json:"root"`
	Digest    string    `json:"digest"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// New creates a Snapshot handle for a materialized tree.
func New(root, digest string, size int64) Snapshot {
	return Snapshot{
		ID:        uuid.New().String(),
		Root:      root,
		Digest:    digest,
		Size:      size,
		CreatedAt: time.Now(),
	}
}

// IsZero returns true if this is a zero-value Snapshot.
func (s Snapshot) IsZero() bool {
	return s.ID == ""
}

// Equivalent reports whether two snapshots carry identical content.
// Equivalence is digest equality, not handle identity.
func (s Snapshot) Equivalent(other Snapshot) bool {
	return s.Digest == other.Digest
}
