package sourceresolve

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"regexp"
	"strings"
)

// shaPattern matches a full 40-hex-character git commit SHA — an immutable
// ref that never needs revalidation once cloned.
var shaPattern = regexp.MustCompile(`^[0-9a-f]{40}$`)

// GitHandler resolves git+https:// (and git+ssh://, git+git://) URIs by
// shelling out to the git binary — no pure-Go git implementation appears
// anywhere in the corpus, so this is one of the few stdlib-adjacent choices
// (os/exec) rather than a library call.
//
// Clones land at <cacheDir>/git/<hash>/<ref>; immutable (40-hex SHA) refs are reused
// indefinitely, mutable refs (branches, tags) are revalidated against the
// remote's HEAD on every resolve and re-cloned when it has moved.
type GitHandler struct {
	// MirrorHost, when set, rewrites github.com URLs to
	// "<mirror>/amplifier/<repo>" before cloning, per §4.1's optional
	// host-rewrite policy.
	MirrorHost string
}

func (GitHandler) CanHandle(p ParsedURI) bool { return p.IsGit() }

func (GitHandler) CacheKey(p ParsedURI) string {
	return "git:" + hashKey(p.Host, p.Path, p.Ref, p.Subpath)
}

func (g GitHandler) Resolve(ctx context.Context, p ParsedURI, cacheDir string) (ResolvedSource, error) {
	cloneURL := g.rewriteHost(p)
	ref := p.Ref
	if ref == "" {
		ref = "main"
	}

	dir := filepath.Join(cacheDir, "git", hashKey(p.Host, p.Path), ref)

	if info, err := os.Stat(dir); err == nil && info.IsDir() {
		if shaPattern.MatchString(ref) {
			return g.resolved(dir, p), nil
		}
		stale, err := g.isStale(ctx, cloneURL, ref, dir)
		if err != nil {
			return ResolvedSource{}, err
		}
		if !stale {
			return g.resolved(dir, p), nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return ResolvedSource{}, err
		}
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return ResolvedSource{}, err
	}

	if err := g.clone(ctx, cloneURL, ref, dir); err != nil {
		return ResolvedSource{}, err
	}

	return g.resolved(dir, p), nil
}

func (g GitHandler) resolved(dir string, p ParsedURI) ResolvedSource {
	return ResolvedSource{SourceRoot: dir, ActivePath: joinSubpath(dir, p.Subpath)}
}

// rewriteHost applies the optional mirror policy: github.com URLs become
// <mirror>/amplifier/<repo>; anything else is passed through.
func (g GitHandler) rewriteHost(p ParsedURI) string {
	scheme := strings.TrimPrefix(p.Scheme, "git+")
	if g.MirrorHost != "" && p.Host == "github.com" {
		repo := strings.TrimSuffix(path.Base(p.Path), ".git")
		return fmt.Sprintf("%s/amplifier/%s", strings.TrimSuffix(g.MirrorHost, "/"), repo)
	}
	return scheme + "://" + p.Host + p.Path
}

func (g GitHandler) clone(ctx context.Context, url, ref, dest string) error {
	cmd := exec.CommandContext(ctx, "git", "clone", "--depth", "1", "--branch", ref, url, dest)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if shaPattern.MatchString(ref) {
			return g.cloneAndCheckout(ctx, url, ref, dest)
		}
		return &NetworkError{URL: url, Cause: fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))}
	}
	return nil
}

// cloneAndCheckout handles the case where ref is a commit SHA, which
// "git clone --branch" cannot target directly: clone the default branch
// then check out the SHA.
func (g GitHandler) cloneAndCheckout(ctx context.Context, url, sha, dest string) error {
	_ = os.RemoveAll(dest)
	cmd := exec.CommandContext(ctx, "git", "clone", url, dest)
	if out, err := cmd.CombinedOutput(); err != nil {
		return &NetworkError{URL: url, Cause: fmt.Errorf("git clone: %w: %s", err, strings.TrimSpace(string(out)))}
	}
	checkout := exec.CommandContext(ctx, "git", "-C", dest, "checkout", sha)
	if out, err := checkout.CombinedOutput(); err != nil {
		_ = os.RemoveAll(dest)
		return &NotFoundError{Path: fmt.Sprintf("%s@%s: %s", url, sha, strings.TrimSpace(string(out)))}
	}
	return nil
}

// isStale compares the cached clone's HEAD SHA against the remote's current
// SHA for ref via "git ls-remote", per §4.1's status() revalidation.
func (g GitHandler) isStale(ctx context.Context, url, ref, dir string) (bool, error) {
	localSHA, err := g.headSHA(ctx, dir)
	if err != nil {
		return true, nil
	}

	cmd := exec.CommandContext(ctx, "git", "ls-remote", url, ref)
	out, err := cmd.Output()
	if err != nil {
		return false, &NetworkError{URL: url, Cause: err}
	}
	fields := strings.Fields(string(out))
	if len(fields) == 0 {
		return false, &NotFoundError{Path: fmt.Sprintf("%s@%s", url, ref)}
	}
	remoteSHA := fields[0]

	return remoteSHA != localSHA, nil
}

func (g GitHandler) headSHA(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "HEAD")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
