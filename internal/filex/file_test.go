package filex

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEnsureDir_CreatesNestedDirectory(t *testing.T) {
	tmp := t.TempDir()

	got, err := EnsureDir(filepath.Join(tmp, "uploads", "2024", "05"))
	require.NoError(t, err)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureDir_Idempotent(t *testing.T) {
	tmp := t.TempDir()

	first, err := EnsureDir(filepath.Join(tmp, "scratch"))
	require.NoError(t, err)
	second, err := EnsureDir(filepath.Join(tmp, "scratch"))
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "scratch")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o660))

	_, err := EnsureDir(p)
	require.Error(t, err)
}

func TestScratchDir_UniqueAndCleanedUp(t *testing.T) {
	base := t.TempDir()

	a, cleanA, err := ScratchDir(base)
	require.NoError(t, err)
	b, cleanB, err := ScratchDir(base)
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, os.WriteFile(filepath.Join(a, "photo.jpg"), []byte("x"), 0o660))
	cleanA()
	cleanA()
	cleanB()

	_, err = os.Stat(a)
	require.True(t, os.IsNotExist(err))
	_, err = os.Stat(b)
	require.True(t, os.IsNotExist(err))
}

func TestExists(t *testing.T) {
	tmp := t.TempDir()
	f := filepath.Join(tmp, "a.jpg")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o660))

	require.True(t, Exists(f))
	require.False(t, Exists(filepath.Join(tmp, "missing.jpg")))
	require.False(t, Exists(tmp), "directories are not files")
}

func TestRemove_MissingIsSuccess(t *testing.T) {
	require.NoError(t, Remove(filepath.Join(t.TempDir(), "nope")))
}

func TestWriteAtomic_WritesAndCreatesParents(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a", "b", "c.pdf")

	n, err := WriteAtomic(dst, strings.NewReader("hello"))
	require.NoError(t, err)
	require.EqualValues(t, 5, n)

	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	require.Equal(t, "hello", string(b))
	require.False(t, Exists(dst+PartialSuffix))
}

type failingReader struct{ sent bool }

func (r *failingReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func TestWriteAtomic_FailureLeavesNothing(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "c.pdf")

	_, err := WriteAtomic(dst, &failingReader{})
	require.Error(t, err)
	require.False(t, Exists(dst))
	require.False(t, Exists(dst+PartialSuffix))
}
