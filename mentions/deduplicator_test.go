package mentions

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddFileReportsNewContentOnce(t *testing.T) {
	d := NewContentDeduplicator()
	require.True(t, d.AddFile("/a.md", "hello"))
	require.False(t, d.AddFile("/a.md", "hello"))
}

func TestAddFileAttributesDuplicateContentToAllPaths(t *testing.T) {
	d := NewContentDeduplicator()
	require.True(t, d.AddFile("/a.md", "shared"))
	require.False(t, d.AddFile("/b.md", "shared"))

	files := d.GetUniqueFiles()
	require.Len(t, files, 1)
	require.ElementsMatch(t, []string{"/a.md", "/b.md"}, files[0].Paths)
}

func TestAddFileDoesNotDuplicatePathForRepeatedResolution(t *testing.T) {
	d := NewContentDeduplicator()
	d.AddFile("/a.md", "x")
	d.AddFile("/a.md", "x")

	files := d.GetUniqueFiles()
	require.Len(t, files, 1)
	require.Equal(t, []string{"/a.md"}, files[0].Paths)
}

func TestGetUniqueFilesPreservesFirstSeenOrder(t *testing.T) {
	d := NewContentDeduplicator()
	d.AddFile("/b.md", "second")
	d.AddFile("/a.md", "first")

	files := d.GetUniqueFiles()
	require.Len(t, files, 2)
	require.Equal(t, "second", files[0].Content)
	require.Equal(t, "first", files[1].Content)
}

func TestIsSeenAndGetKnownHashes(t *testing.T) {
	d := NewContentDeduplicator()
	require.False(t, d.IsSeen("x"))
	d.AddFile("/a.md", "x")
	require.True(t, d.IsSeen("x"))
	require.Len(t, d.GetKnownHashes(), 1)
}
