package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amplifier-run/amplifier/sourceresolve"
	"github.com/stretchr/testify/require"
)

func TestDiskCacheRoundTripsBundle(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)

	b := New("demo")
	b.Description = "a demo bundle"
	b.Providers = []ModuleEntry{{Module: "anthropic", Source: "file://./p"}}
	b.Context = map[string]string{"notes.md": "/base/notes.md"}

	require.NoError(t, cache.Set("demo-key", b))

	loaded := cache.Get("demo-key")
	require.NotNil(t, loaded)
	require.Equal(t, "demo", loaded.Name)
	require.Equal(t, "a demo bundle", loaded.Description)
	require.Len(t, loaded.Providers, 1)
	require.Equal(t, "anthropic", loaded.Providers[0].Module)
	require.Equal(t, "/base/notes.md", loaded.Context["notes.md"])
}

func TestDiskCacheGetReturnsNilForMissingKey(t *testing.T) {
	cache, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	require.Nil(t, cache.Get("absent"))
}

func TestDiskCacheGetSelfHealsOnCorruptFile(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)

	path := cache.pathFor("bad-key")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	require.Nil(t, cache.Get("bad-key"))
	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestDiskCacheClearRemovesEveryEntry(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewDiskCache(dir)
	require.NoError(t, err)

	require.NoError(t, cache.Set("a", New("a")))
	require.NoError(t, cache.Set("b", New("b")))
	require.NoError(t, cache.Clear())

	require.Nil(t, cache.Get("a"))
	require.Nil(t, cache.Get("b"))
}

func TestRegistryLoadResolvesRegisteredNameToURI(t *testing.T) {
	dir := t.TempDir()
	writeBundleYAML(t, dir, "bundle:\n  name: demo\n")

	reg := NewRegistry(&Loader{Resolver: sourceresolve.NewResolver(t.TempDir(), sourceresolve.FileHandler{})}, nil)
	reg.Register("demo", dir)

	b, err := reg.Load(context.Background(), "demo")
	require.NoError(t, err)
	require.Equal(t, "demo", b.Name)
}

func TestRegistryLoadCachesInMemory(t *testing.T) {
	dir := t.TempDir()
	writeBundleYAML(t, dir, "bundle:\n  name: demo\n")

	reg := NewRegistry(&Loader{Resolver: sourceresolve.NewResolver(t.TempDir(), sourceresolve.FileHandler{})}, nil)
	first, err := reg.Load(context.Background(), dir)
	require.NoError(t, err)

	// Mutate the file on disk; the cached in-memory bundle should still
	// be returned without re-parsing.
	writeBundleYAML(t, dir, "bundle:\n  name: changed\n")
	second, err := reg.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Same(t, first, second)
}

func TestRegistryInvalidatesOnFileChange(t *testing.T) {
	dir := t.TempDir()
	writeBundleYAML(t, dir, "bundle:\n  name: demo\n")

	disk, err := NewDiskCache(t.TempDir())
	require.NoError(t, err)
	reg := NewRegistry(&Loader{Resolver: sourceresolve.NewResolver(t.TempDir(), sourceresolve.FileHandler{})}, disk)
	defer reg.Close()

	first, err := reg.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "demo", first.Name)

	writeBundleYAML(t, dir, "bundle:\n  name: changed\n")

	require.Eventually(t, func() bool {
		reg.mu.RLock()
		_, stillCached := reg.loaded[dir]
		reg.mu.RUnlock()
		return !stillCached
	}, 2*time.Second, 20*time.Millisecond)

	reloaded, err := reg.Load(context.Background(), dir)
	require.NoError(t, err)
	require.Equal(t, "changed", reloaded.Name)
}

func TestRegistryLoadFallsThroughToDiskCacheBeforeLoader(t *testing.T) {
	dir := t.TempDir()
	diskDir := t.TempDir()
	disk, err := NewDiskCache(diskDir)
	require.NoError(t, err)

	preCached := New("from-disk-cache")
	require.NoError(t, disk.Set(filepath.Clean(dir), preCached))

	reg := NewRegistry(&Loader{}, disk)
	b, err := reg.Load(context.Background(), filepath.Clean(dir))
	require.NoError(t, err)
	require.Equal(t, "from-disk-cache", b.Name)
}
