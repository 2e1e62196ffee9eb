// Package filex holds the local-filesystem helpers of the pipeline: scratch
// directories scoped to one operation and partial-safe writes.
package filex

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// PartialSuffix marks a file that is still being written.
const PartialSuffix = ".part"

// EnsureDir creates dir (and parents) if needed and returns its absolute path.
func EnsureDir(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("abs %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o770); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", abs, err)
	}
	return abs, nil
}

// ScratchDir creates a uniquely named directory under base. The returned
// cleanup removes it with everything inside and is safe to call twice.
// An empty base means os.TempDir().
func ScratchDir(base string) (string, func(), error) {
	if base == "" {
		base = os.TempDir()
	}
	root, err := EnsureDir(base)
	if err != nil {
		return "", func() {}, err
	}
	dir := filepath.Join(root, "offload-"+uuid.NewString())
	if err := os.Mkdir(dir, 0o770); err != nil {
		return "", func() {}, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	fi, err := os.Stat(path)
	if err != nil {
		return false
	}
	return fi.Mode().IsRegular()
}

// Remove deletes path, treating "already gone" as success.
func Remove(path string) error {
	err := os.Remove(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// WriteAtomic copies r into path. Bytes land in a ".part" sibling first and
// are renamed into place only after a successful close, so a failed copy
// never leaves a file at path. Parent directories are created as needed.
func WriteAtomic(path string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return 0, fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}

	tmp := path + PartialSuffix
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o660)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", tmp, err)
	}

	n, copyErr := io.Copy(f, r)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(tmp)
		if copyErr != nil {
			return n, fmt.Errorf("write %s: %w", tmp, copyErr)
		}
		return n, fmt.Errorf("close %s: %w", tmp, closeErr)
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return n, fmt.Errorf("rename %s: %w", tmp, err)
	}
	return n, nil
}
