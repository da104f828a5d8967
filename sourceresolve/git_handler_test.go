package sourceresolve

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func requireGitBinary(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

func initTestRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com",
		)
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	run("init", "-b", "main")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.yaml"), []byte("name: example"), 0o644))
	run("add", "bundle.yaml")
	run("commit", "-m", "initial")
	return dir
}

func TestGitHandlerClonesMainBranch(t *testing.T) {
	requireGitBinary(t)
	repo := initTestRepo(t)

	r := NewResolver(t.TempDir(), GitHandler{})
	res, err := r.Resolve(context.Background(), "git+file://"+repo)
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(res.SourceRoot, "bundle.yaml"))
	require.NoError(t, err)
	require.Equal(t, "name: example", string(contents))
}

func TestGitHandlerReusesImmutableSHAIndefinitely(t *testing.T) {
	requireGitBinary(t)
	repo := initTestRepo(t)

	head := exec.Command("git", "-C", repo, "rev-parse", "HEAD")
	out, err := head.Output()
	require.NoError(t, err)
	sha := string(out)
	sha = sha[:len(sha)-1] // trim newline

	cacheDir := t.TempDir()
	h := GitHandler{}
	res, err := h.Resolve(context.Background(), ParseURI("git+file://"+repo+"@"+sha), cacheDir)
	require.NoError(t, err)

	stat, err := os.Stat(res.SourceRoot)
	require.NoError(t, err)
	firstModTime := stat.ModTime()

	res2, err := h.Resolve(context.Background(), ParseURI("git+file://"+repo+"@"+sha), cacheDir)
	require.NoError(t, err)
	stat2, err := os.Stat(res2.SourceRoot)
	require.NoError(t, err)
	require.Equal(t, firstModTime, stat2.ModTime(), "a SHA-pinned clone must not be re-fetched")
}

func TestGitHandlerCloneAndCheckoutCleansUpOnMissingSHA(t *testing.T) {
	requireGitBinary(t)
	repo := initTestRepo(t)

	// A well-formed but nonexistent 40-hex SHA: not in repo history, so
	// "git checkout" fails after the clone succeeds.
	const missingSHA = "000000000000000000000000000000000000dead"

	cacheDir := t.TempDir()
	h := GitHandler{}
	_, err := h.Resolve(context.Background(), ParseURI("git+file://"+repo+"@"+missingSHA), cacheDir)
	require.Error(t, err)
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)

	dest := filepath.Join(cacheDir, "git", hashKey("", repo), missingSHA)
	_, statErr := os.Stat(dest)
	require.True(t, os.IsNotExist(statErr), "failed checkout must not leave a half-cloned directory behind")

	// A retry should clone fresh rather than short-circuit on the (absent)
	// cached directory.
	_, err = h.Resolve(context.Background(), ParseURI("git+file://"+repo+"@"+missingSHA), cacheDir)
	require.Error(t, err)
	require.ErrorAs(t, err, &notFound)
}

func TestGitHandlerRewriteHostAppliesMirrorPolicy(t *testing.T) {
	h := GitHandler{MirrorHost: "https://mirror.internal"}
	url := h.rewriteHost(ParsedURI{Scheme: "git+https", Host: "github.com", Path: "/org/repo"})
	require.Equal(t, "https://mirror.internal/amplifier/repo", url)
}

func TestGitHandlerRewriteHostLeavesNonGitHubUntouched(t *testing.T) {
	h := GitHandler{MirrorHost: "https://mirror.internal"}
	url := h.rewriteHost(ParsedURI{Scheme: "git+https", Host: "gitlab.com", Path: "/org/repo"})
	require.Equal(t, "https://gitlab.com/org/repo", url)
}
