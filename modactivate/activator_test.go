package modactivate

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/amplifier-run/amplifier/sourceresolve"
	"github.com/stretchr/testify/require"
)

type noopInstaller struct {
	calls int32
}

func (n *noopInstaller) Install(ctx context.Context, modulePath string) error {
	atomic.AddInt32(&n.calls, 1)
	return nil
}

func newFileBackedResolver(t *testing.T) *sourceresolve.Resolver {
	t.Helper()
	return sourceresolve.NewResolver(t.TempDir(), sourceresolve.FileHandler{})
}

func makeModuleDir(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/"+name+"\n"), 0o644))
	return dir
}

func TestActivateInstallsOnceThenReusesFingerprint(t *testing.T) {
	modDir := makeModuleDir(t, "loop-streaming")
	installer := &noopInstaller{}
	cacheDir := t.TempDir()

	a := New(newFileBackedResolver(t), installer, cacheDir)

	result, err := a.Activate(context.Background(), "loop-streaming", "file://"+modDir)
	require.NoError(t, err)
	require.Equal(t, modDir, result.Path)
	require.EqualValues(t, 1, installer.calls)
	require.NoError(t, a.Finalize())

	a2 := New(newFileBackedResolver(t), installer, cacheDir)
	_, err = a2.Activate(context.Background(), "loop-streaming", "file://"+modDir)
	require.NoError(t, err)
	require.EqualValues(t, 1, installer.calls, "second activation of an unchanged module must not reinstall")
}

func TestActivateServesFromInMemoryCacheOnRepeatedCall(t *testing.T) {
	modDir := makeModuleDir(t, "tool-shadow")
	installer := &noopInstaller{}
	a := New(newFileBackedResolver(t), installer, t.TempDir())

	_, err := a.Activate(context.Background(), "tool-shadow", "file://"+modDir)
	require.NoError(t, err)
	_, err = a.Activate(context.Background(), "tool-shadow", "file://"+modDir)
	require.NoError(t, err)

	require.EqualValues(t, 1, installer.calls)
}

func TestActivateAllCollectsErrorsWithoutShortCircuiting(t *testing.T) {
	good := makeModuleDir(t, "good-module")
	installer := &noopInstaller{}
	a := New(newFileBackedResolver(t), installer, t.TempDir())

	entries := []ModuleEntry{
		{ModuleID: "good", SourceURI: "file://" + good},
		{ModuleID: "missing", SourceURI: "file:///does/not/exist/at/all"},
	}

	activated, merr := a.ActivateAll(context.Background(), entries)
	require.NotNil(t, merr)
	require.Len(t, merr.Errors(), 1)
	require.Contains(t, activated, "good")
	require.NotContains(t, activated, "missing")
}

func TestActivateAllReturnsNilErrorWhenEverythingSucceeds(t *testing.T) {
	a1 := makeModuleDir(t, "mod-a")
	a2 := makeModuleDir(t, "mod-b")
	installer := &noopInstaller{}
	a := New(newFileBackedResolver(t), installer, t.TempDir())

	entries := []ModuleEntry{
		{ModuleID: "a", SourceURI: "file://" + a1},
		{ModuleID: "b", SourceURI: "file://" + a2},
	}

	activated, merr := a.ActivateAll(context.Background(), entries)
	require.Nil(t, merr)
	require.Len(t, activated, 2)
}
