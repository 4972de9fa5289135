package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyTree deep-copies the tree rooted at src into dst. dst must not
// already contain conflicting entries; directories are created as
// needed. File modes are preserved, symlinks are recreated rather than
// followed.
func CopyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())

		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(link, target)

		case info.Mode().IsRegular():
			return copyFile(path, target, info.Mode().Perm())

		default:
			// Sockets, devices and the like never appear in build
			// snapshots; refusing is safer than silently skipping.
			return fmt.Errorf("unsupported file type at %s", path)
		}
	})
}

// copyFile copies a single regular file preserving its permissions.
func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// DigestTree computes a deterministic content digest and total size of
// the tree rooted at root. The walk order is lexical, and every entry
// contributes its relative path, type, mode and content, each
// length-prefixed, so two trees share a digest exactly when they are
// byte-for-byte and structure-for-structure identical.
func DigestTree(root string) (string, int64, error) {
	h := sha256.New()
	var size int64

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		writeField(h, []byte(rel))
		writeField(h, []byte(info.Mode().String()))

		switch {
		case d.IsDir():
			return nil

		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			writeField(h, []byte(link))
			return nil

		case info.Mode().IsRegular():
			sum, err := fileDigest(path)
			if err != nil {
				return err
			}
			writeField(h, sum)
			size += info.Size()
			return nil

		default:
			return fmt.Errorf("unsupported file type at %s", path)
		}
	})
	if err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

// fileDigest returns the sha256 digest of one file's content.
func fileDigest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}

	return h.Sum(nil), nil
}

// writeField writes a length-prefixed field to the digest.
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
