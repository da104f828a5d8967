package bundle

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/amplifier-run/amplifier/modactivate"
	"github.com/amplifier-run/amplifier/sourceresolve"
)

type noopInstaller struct{}

func (noopInstaller) Install(ctx context.Context, modulePath string) error { return nil }

func newTestActivator(t *testing.T) *modactivate.Activator {
	t.Helper()
	cacheDir := t.TempDir()
	resolver := sourceresolve.NewResolver(cacheDir, sourceresolve.FileHandler{})
	return modactivate.New(resolver, noopInstaller{}, cacheDir)
}

func makeSourceModule(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module "+name+"\n\ngo 1.22\n"), 0o644))
	return dir
}

func TestPrepareActivatesEveryModuleEntryWithASource(t *testing.T) {
	providerDir := makeSourceModule(t, "anthropic")

	b := New("demo")
	b.Providers = []ModuleEntry{{Module: "anthropic", Source: "file://" + providerDir}}

	activator := newTestActivator(t)
	pb, err := Prepare(context.Background(), b, activator)
	require.NoError(t, err)

	require.Len(t, pb.Providers, 1)
	require.Equal(t, "anthropic", pb.Providers[0].Module)
	require.NotEmpty(t, pb.Providers[0].Local.Path)
}

func TestPrepareSkipsActivationForEntriesWithoutSource(t *testing.T) {
	b := New("demo")
	b.Tools = []ModuleEntry{{Module: "builtin-calculator"}}

	activator := newTestActivator(t)
	pb, err := Prepare(context.Background(), b, activator)
	require.NoError(t, err)

	require.Len(t, pb.Tools, 1)
	require.Empty(t, pb.Tools[0].Local.Path)
}

func TestPrepareBuildsMentionsResolverScopedToBasePath(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("hello"), 0o644))

	b := New("demo")
	b.BasePath = dir

	activator := newTestActivator(t)
	pb, err := Prepare(context.Background(), b, activator)
	require.NoError(t, err)

	path, ok := pb.Mentions.Resolve("@notes.md")
	require.True(t, ok)
	require.Equal(t, filepath.Join(dir, "notes.md"), path)
}

func TestPrepareMentionsResolverResolvesComposedNamespacedContext(t *testing.T) {
	b := New("demo")
	b.Context["foundation:context/KERNEL.md"] = "/deps/foundation/context/KERNEL.md"

	activator := newTestActivator(t)
	pb, err := Prepare(context.Background(), b, activator)
	require.NoError(t, err)

	path, ok := pb.Mentions.Resolve("@foundation:context/KERNEL.md")
	require.True(t, ok)
	require.Equal(t, "/deps/foundation/context/KERNEL.md", path)
}

func TestPrepareReturnsErrorWhenActivationFails(t *testing.T) {
	b := New("demo")
	b.Hooks = []ModuleEntry{{Module: "broken", Source: "file://" + filepath.Join(t.TempDir(), "does-not-exist")}}

	activator := newTestActivator(t)
	_, err := Prepare(context.Background(), b, activator)
	require.Error(t, err)
}
