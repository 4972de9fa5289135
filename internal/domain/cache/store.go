// Package cache provides the content-addressed snapshot store keyed by
// step fingerprints.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/fingerprint"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
)

// Cache errors.
var (
	// ErrEntryNotFound is returned by Lookup when no snapshot is cached
	// under a fingerprint. An ordinary miss, not a failure.
	ErrEntryNotFound = errors.New("cache entry not found")

	// ErrCacheUnavailable is returned when the storage medium cannot be
	// reached. Callers degrade to a rebuild rather than aborting.
	ErrCacheUnavailable = errors.New("cache store unavailable")

	// ErrInconsistentCache is returned when a fingerprint would be
	// mapped to non-equivalent content. This breaks the determinism
	// invariant and is never resolved silently.
	ErrInconsistentCache = errors.New("inconsistent cache entry")
)

// Entry is the stored metadata for one cached snapshot.
type Entry struct {
	Fingerprint string    `json:"fingerprint"`
	SnapshotID  string    `json:"snapshot_id"`
	Digest      string    `json:"digest"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"created_at"`
	LastUsedAt  time.Time `json:"last_used_at"`
}

// Stats summarizes the store contents.
type Stats struct {
	Entries   int
	TotalSize int64
}

// Store persists snapshots keyed by fingerprint. Implementations must
// be safe for concurrent use; independent builds may share one store.
type Store interface {
	// Lookup returns the snapshot cached under fp, or ErrEntryNotFound.
	Lookup(ctx context.Context, fp fingerprint.Fingerprint) (snapshot.Snapshot, error)

	// Put commits a snapshot under fp and returns the committed handle.
	// Re-putting equivalent content is a no-op returning the existing
	// handle; divergent content returns ErrInconsistentCache.
	Put(ctx context.Context, fp fingerprint.Fingerprint, snap snapshot.Snapshot) (snapshot.Snapshot, error)

	// Evict removes least-recently-used entries until the store is
	// within its capacity. Pinned entries are never evicted.
	Evict(ctx context.Context) (int, error)

	// Pin marks an entry as in use by an in-flight build.
	Pin(fp fingerprint.Fingerprint)

	// Unpin releases a previous Pin.
	Unpin(fp fingerprint.Fingerprint)
}
