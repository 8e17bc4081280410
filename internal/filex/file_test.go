package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestEnsureParentDir_CreatesDirectory(t *testing.T) {
	tmp := t.TempDir()
	target := filepath.Join(tmp, "nested", "cloudbox", "cache.db")

	got, err := EnsureParentDir(target)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(tmp, "nested", "cloudbox"), got)

	fi, err := os.Stat(got)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), fi.Mode().Perm()&0o700)
	}
}

func TestEnsureParentDir_Idempotent(t *testing.T) {
	target := filepath.Join(t.TempDir(), "cache.db")

	first, err := EnsureParentDir(target)
	require.NoError(t, err)
	second, err := EnsureParentDir(target)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestEnsureParentDir_Memory(t *testing.T) {
	got, err := EnsureParentDir(":memory:")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestEnsureParentDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	touch(t, filepath.Join(tmp, "blocker"))

	_, err := EnsureParentDir(filepath.Join(tmp, "blocker", "cache.db"))
	require.Error(t, err, "should fail when a file exists with the parent's name")
}

func TestExpandPaths(t *testing.T) {
	tmp := t.TempDir()
	single := filepath.Join(tmp, "single.txt")
	touch(t, single)
	touch(t, filepath.Join(tmp, "dir", "b.txt"))
	touch(t, filepath.Join(tmp, "dir", "a.txt"))
	touch(t, filepath.Join(tmp, "dir", "sub", "c.txt"))
	touch(t, filepath.Join(tmp, "dir", ".hidden"))
	touch(t, filepath.Join(tmp, "dir", ".git", "config"))

	got, err := ExpandPaths([]string{single, filepath.Join(tmp, "dir"), single})
	require.NoError(t, err)
	require.Equal(t, []string{
		single,
		filepath.Join(tmp, "dir", "a.txt"),
		filepath.Join(tmp, "dir", "b.txt"),
		filepath.Join(tmp, "dir", "sub", "c.txt"),
	}, got)
}

func TestExpandPaths_Missing(t *testing.T) {
	_, err := ExpandPaths([]string{filepath.Join(t.TempDir(), "nope")})
	require.ErrorIs(t, err, os.ErrNotExist)
}
