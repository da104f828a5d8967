package atomicfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "out.json")

	require.NoError(t, Write(path, []byte(`{"a":1}`), 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"a":1}`, string(got))
}

func TestWriteWithBackupPreservesPriorContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.json")

	require.NoError(t, Write(path, []byte("v1"), 0o644))
	require.NoError(t, WriteWithBackup(path, []byte("v2"), ".backup", 0o644))

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))

	backup, err := os.ReadFile(path + ".backup")
	require.NoError(t, err)
	require.Equal(t, "v1", string(backup))
}

func TestWriteWithBackupFirstWriteHasNoBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fresh.json")

	require.NoError(t, WriteWithBackup(path, []byte("v1"), ".backup", 0o644))
	_, err := os.Stat(path + ".backup")
	require.True(t, os.IsNotExist(err))
}
