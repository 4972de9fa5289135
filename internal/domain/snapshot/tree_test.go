package snapshot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func TestDigestTree(t *testing.T) {
	t.Parallel()

	t.Run("identical trees share a digest", func(t *testing.T) {
		t.Parallel()

		files := map[string]string{
			"bin/tool":      "#!/bin/sh\necho tool",
			"etc/config":    "key=value",
			"usr/lib/lib.a": "archive",
		}

		a := t.TempDir()
		b := t.TempDir()
		writeTree(t, a, files)
		writeTree(t, b, files)

		digestA, sizeA, err := DigestTree(a)
		require.NoError(t, err)
		digestB, sizeB, err := DigestTree(b)
		require.NoError(t, err)

		assert.Equal(t, digestA, digestB)
		assert.Equal(t, sizeA, sizeB)
	})

	t.Run("content change changes the digest", func(t *testing.T) {
		t.Parallel()

		a := t.TempDir()
		b := t.TempDir()
		writeTree(t, a, map[string]string{"etc/config": "key=value"})
		writeTree(t, b, map[string]string{"etc/config": "key=other"})

		digestA, _, err := DigestTree(a)
		require.NoError(t, err)
		digestB, _, err := DigestTree(b)
		require.NoError(t, err)

		assert.NotEqual(t, digestA, digestB)
	})

	t.Run("path change changes the digest", func(t *testing.T) {
		t.Parallel()

		a := t.TempDir()
		b := t.TempDir()
		writeTree(t, a, map[string]string{"etc/config": "key=value"})
		writeTree(t, b, map[string]string{"etc/renamed": "key=value"})

		digestA, _, err := DigestTree(a)
		require.NoError(t, err)
		digestB, _, err := DigestTree(b)
		require.NoError(t, err)

		assert.NotEqual(t, digestA, digestB)
	})

	t.Run("empty tree digests deterministically", func(t *testing.T) {
		t.Parallel()

		digestA, sizeA, err := DigestTree(t.TempDir())
		require.NoError(t, err)
		digestB, _, err := DigestTree(t.TempDir())
		require.NoError(t, err)

		assert.Equal(t, digestA, digestB)
		assert.Zero(t, sizeA)
	})
}

func TestCopyTree(t *testing.T) {
	t.Parallel()

	t.Run("copy is digest-equivalent to the source", func(t *testing.T) {
		t.Parallel()

		src := t.TempDir()
		dst := t.TempDir()
		writeTree(t, src, map[string]string{
			"a.txt":            "alpha",
			"nested/deep/b.go": "package b",
		})

		require.NoError(t, CopyTree(src, dst))

		srcDigest, _, err := DigestTree(src)
		require.NoError(t, err)
		dstDigest, _, err := DigestTree(dst)
		require.NoError(t, err)

		assert.Equal(t, srcDigest, dstDigest)
	})

	t.Run("preserves file permissions", func(t *testing.T) {
		t.Parallel()

		src := t.TempDir()
		dst := t.TempDir()
		path := filepath.Join(src, "run.sh")
		require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755))

		require.NoError(t, CopyTree(src, dst))

		info, err := os.Stat(filepath.Join(dst, "run.sh"))
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())
	})

	t.Run("recreates symlinks without following them", func(t *testing.T) {
		t.Parallel()

		src := t.TempDir()
		dst := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(src, "target"), []byte("x"), 0o644))
		require.NoError(t, os.Symlink("target", filepath.Join(src, "link")))

		require.NoError(t, CopyTree(src, dst))

		link, err := os.Readlink(filepath.Join(dst, "link"))
		require.NoError(t, err)
		assert.Equal(t, "target", link)
	})
}

func TestSnapshot(t *testing.T) {
	t.Parallel()

	t.Run("new snapshots get unique IDs", func(t *testing.T) {
		t.Parallel()

		a := New("/tmp/a", "digest", 10)
		b := New("/tmp/b", "digest", 10)

		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
		assert.False(t, a.IsZero())
	})

	t.Run("equivalence is digest equality", func(t *testing.T) {
		t.Parallel()

		a := New("/tmp/a", "digest", 10)
		b := New("/tmp/b", "digest", 10)
		c := New("/tmp/c", "other", 10)

		assert.True(t, a.Equivalent(b))
		assert.False(t, a.Equivalent(c))
	})

	t.Run("zero value", func(t *testing.T) {
		t.Parallel()

		var s Snapshot
		assert.True(t, s.IsZero())
	})
}
