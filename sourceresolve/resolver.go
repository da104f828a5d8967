package sourceresolve

import (
	"context"
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ResolvedSource is a handler's result: the active (requested) path and the
// full clone/extract root, per §4.1's "{active_path, source_root}".
type ResolvedSource struct {
	ActivePath string
	SourceRoot string
}

// IsSubdirectory reports whether ActivePath is a subdirectory of
// SourceRoot (i.e. the URI carried a #subdirectory= fragment).
func (r ResolvedSource) IsSubdirectory() bool {
	return r.ActivePath != r.SourceRoot
}

// Handler resolves one URI scheme to a local path. Implementations must be
// idempotent and cacheable by CacheKey; all handlers must serialize their
// own cache access per key (spec §5), which the Resolver provides via
// singleflight.
type Handler interface {
	CanHandle(p ParsedURI) bool
	CacheKey(p ParsedURI) string
	Resolve(ctx context.Context, p ParsedURI, cacheDir string) (ResolvedSource, error)
}

// Resolver is a registry of scheme handlers; the first whose CanHandle
// returns true wins, grounded on the teacher's Registry[T] pattern
// (pkg/registry/registry.go) specialized to handlers rather than plugins.
type Resolver struct {
	handlers []Handler
	cacheDir string

	group singleflight.Group

	mu    sync.Mutex
	cache map[string]ResolvedSource
}

// NewResolver builds a Resolver that caches handler fetches under cacheDir
// (typically $AMPLIFIER_HOME/cache/sources).
func NewResolver(cacheDir string, handlers ...Handler) *Resolver {
	return &Resolver{
		handlers: handlers,
		cacheDir: cacheDir,
		cache:    make(map[string]ResolvedSource),
	}
}

// Resolve parses uri and dispatches to the first matching handler,
// collapsing concurrent resolutions of the same cache key into one fetch.
func (r *Resolver) Resolve(ctx context.Context, uri string) (ResolvedSource, error) {
	parsed := ParseURI(uri)

	for _, h := range r.handlers {
		if !h.CanHandle(parsed) {
			continue
		}
		key := h.CacheKey(parsed)

		r.mu.Lock()
		if cached, ok := r.cache[key]; ok {
			r.mu.Unlock()
			return cached, nil
		}
		r.mu.Unlock()

		v, err, _ := r.group.Do(key, func() (any, error) {
			res, resErr := h.Resolve(ctx, parsed, r.cacheDir)
			if resErr != nil {
				return ResolvedSource{}, wrapResolveError(uri, resErr)
			}
			r.mu.Lock()
			r.cache[key] = res
			r.mu.Unlock()
			return res, nil
		})
		if err != nil {
			return ResolvedSource{}, err
		}
		return v.(ResolvedSource), nil
	}

	return ResolvedSource{}, &BundleLoadError{
		URI:   uri,
		Cause: fmt.Errorf("no handler registered for scheme %q", parsed.Scheme),
	}
}

// hashKey derives the deterministic cache key the spec requires: "for git:
// host+path+ref+subpath hashed; for zip/http: URL hashed; for file:
// canonicalized path" (§4.1).
func hashKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return fmt.Sprintf("%x", h.Sum(nil))[:16]
}

func joinSubpath(root, subpath string) string {
	if subpath == "" {
		return root
	}
	return filepath.Join(root, subpath)
}
