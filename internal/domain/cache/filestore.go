package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/felixgeelhaar/stratum/internal/domain/fingerprint"
	"github.com/felixgeelhaar/stratum/internal/domain/snapshot"
)

// storeIndex is the on-disk index of all cache entries.
type storeIndex struct {
	Entries map[string]Entry `json:"entries"`
}

// FileStore implements Store on the local filesystem. Snapshot trees
// live under <base>/snapshots/<id>/ and metadata in <base>/index.json,
// so entries survive process restarts and a later build can resume from
// any cached prefix.
type FileStore struct {
	basePath string
	capacity int64 // bytes, 0 means unlimited

	mu   sync.Mutex
	pins map[string]int
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithCapacity sets the eviction threshold in bytes (default: unlimited).
func WithCapacity(bytes int64) FileStoreOption {
	return func(s *FileStore) {
		s.capacity = bytes
	}
}

// NewFileStore creates a FileStore rooted at basePath.
func NewFileStore(basePath string, opts ...FileStoreOption) *FileStore {
	s := &FileStore{
		basePath: basePath,
		pins:     make(map[string]int),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Lookup returns the snapshot cached under fp and refreshes its
// recency for eviction ordering.
func (s *FileStore) Lookup(_ context.Context, fp fingerprint.Fingerprint) (snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	entry, ok := index.Entries[fp.Hex()]
	if !ok {
		return snapshot.Snapshot{}, ErrEntryNotFound
	}

	entry.LastUsedAt = time.Now()
	index.Entries[fp.Hex()] = entry
	if err := s.saveIndex(index); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	return snapshot.Snapshot{
		ID:        entry.SnapshotID,
		Root:      s.snapshotDir(entry.SnapshotID),
		Digest:    entry.Digest,
		Size:      entry.Size,
		CreatedAt: entry.CreatedAt,
	}, nil
}

// Put commits the snapshot's tree into the store under fp.
// Write-once: an equivalent re-put returns the existing handle, a
// divergent one fails with ErrInconsistentCache.
func (s *FileStore) Put(_ context.Context, fp fingerprint.Fingerprint, snap snapshot.Snapshot) (snapshot.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	if existing, ok := index.Entries[fp.Hex()]; ok {
		if existing.Digest != snap.Digest {
			return snapshot.Snapshot{}, fmt.Errorf("%w: fingerprint %s maps to digest %s, refusing digest %s",
				ErrInconsistentCache, fp.Short(), existing.Digest, snap.Digest)
		}
		// Equivalent content already committed, likely by a concurrent
		// build sharing this store.
		return snapshot.Snapshot{
			ID:        existing.SnapshotID,
			Root:      s.snapshotDir(existing.SnapshotID),
			Digest:    existing.Digest,
			Size:      existing.Size,
			CreatedAt: existing.CreatedAt,
		}, nil
	}

	dst := s.snapshotDir(snap.ID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := snapshot.CopyTree(snap.Root, dst); err != nil {
		_ = os.RemoveAll(dst)
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	now := time.Now()
	index.Entries[fp.Hex()] = Entry{
		Fingerprint: fp.String(),
		SnapshotID:  snap.ID,
		Digest:      snap.Digest,
		Size:        snap.Size,
		CreatedAt:   now,
		LastUsedAt:  now,
	}

	if err := s.saveIndex(index); err != nil {
		_ = os.RemoveAll(dst)
		return snapshot.Snapshot{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	committed := snap
	committed.Root = dst
	return committed, nil
}

// Evict removes least-recently-used unpinned entries until total size
// is within capacity. With no capacity configured it does nothing.
func (s *FileStore) Evict(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity <= 0 {
		return 0, nil
	}

	index, err := s.loadIndex()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	type keyed struct {
		key   string
		entry Entry
	}

	var total int64
	candidates := make([]keyed, 0, len(index.Entries))
	for key, entry := range index.Entries {
		total += entry.Size
		candidates = append(candidates, keyed{key: key, entry: entry})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].entry.LastUsedAt.Before(candidates[j].entry.LastUsedAt)
	})

	count := 0
	for _, c := range candidates {
		if total <= s.capacity {
			break
		}
		if s.pins[c.key] > 0 {
			continue
		}

		_ = os.RemoveAll(s.snapshotDir(c.entry.SnapshotID))
		delete(index.Entries, c.key)
		total -= c.entry.Size
		count++
	}

	if count > 0 {
		if err := s.saveIndex(index); err != nil {
			return count, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
		}
	}

	return count, nil
}

// Pin marks the entry under fp as in use by an in-flight build.
func (s *FileStore) Pin(fp fingerprint.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pins[fp.Hex()]++
}

// Unpin releases a previous Pin.
func (s *FileStore) Unpin(fp fingerprint.Fingerprint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pins[fp.Hex()] <= 1 {
		delete(s.pins, fp.Hex())
		return
	}
	s.pins[fp.Hex()]--
}

// Stats returns entry count and total stored size.
func (s *FileStore) Stats() (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.loadIndex()
	if err != nil {
		return Stats{}, fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}

	var stats Stats
	for _, entry := range index.Entries {
		stats.Entries++
		stats.TotalSize += entry.Size
	}

	return stats, nil
}

// snapshotDir returns the tree location for a snapshot ID.
func (s *FileStore) snapshotDir(id string) string {
	return filepath.Join(s.basePath, "snapshots", id)
}

// loadIndex loads the entry index from disk.
func (s *FileStore) loadIndex() (*storeIndex, error) {
	indexPath := filepath.Join(s.basePath, "index.json")

	data, err := os.ReadFile(indexPath)
	if os.IsNotExist(err) {
		return &storeIndex{Entries: make(map[string]Entry)}, nil
	}
	if err != nil {
		return nil, err
	}

	var index storeIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, err
	}

	if index.Entries == nil {
		index.Entries = make(map[string]Entry)
	}

	return &index, nil
}

// saveIndex saves the entry index to disk.
func (s *FileStore) saveIndex(index *storeIndex) error {
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.basePath, "index.json"), data, 0o644)
}

// Ensure FileStore implements Store.
var _ Store = (*FileStore)(nil)
