package mentions

import (
	"path/filepath"
	"strings"
)

// ContextLookup resolves a bundle's registered context reference (the full
// "name" or "namespace:path" key used in a bundle manifest's context.include
// list) to a local filesystem path. *bundle.Bundle satisfies this directly,
// since a composed bundle's Context map is already keyed by the full
// namespaced reference string.
type ContextLookup interface {
	ResolveContextPath(ref string) (string, bool)
}

// Resolver resolves @mentions to local filesystem paths, ported from
// resolver.py's BaseMentionResolver.resolve. A bundle's composed Context
// map already carries every namespace's entries under their original
// "ns:path" keys, so a single ContextLookup (the bundle itself) is enough —
// no per-namespace registry is needed the way the original's multi-bundle
// resolver required.
type Resolver struct {
	lookup   ContextLookup
	basePath string
}

// NewResolver builds a Resolver that resolves "ns:path" mentions via lookup
// and plain mentions relative to basePath.
func NewResolver(lookup ContextLookup, basePath string) *Resolver {
	return &Resolver{lookup: lookup, basePath: basePath}
}

// Resolve resolves a single @mention (including its leading @) to a path.
// A namespaced reference ("@ns:path") is resolved via the ContextLookup; a
// home-relative reference ("@~/path") is resolved against the user's home
// directory; anything else is resolved relative to basePath. Both the
// home-relative and basePath-relative cases try a bare path first, then a
// ".md"-suffixed variant, matching the original's markdown-first fallback.
func (r *Resolver) Resolve(mention string) (string, bool) {
	body := strings.TrimPrefix(mention, "@")
	if body == "" {
		return "", false
	}

	if ns, _, ok := splitMentionNamespace(body); ok {
		_ = ns
		if r.lookup == nil {
			return "", false
		}
		return r.lookup.ResolveContextPath(body)
	}

	if strings.HasPrefix(body, "~") {
		return withMarkdownFallback(expandHome(body))
	}

	return withMarkdownFallback(filepath.Join(r.basePath, body))
}

// splitMentionNamespace detects a "namespace:path" mention body, requiring
// the ":" to appear before any "/" (so a bare relative path containing a
// colon, however unlikely, is never mistaken for a namespace reference).
func splitMentionNamespace(body string) (ns, path string, ok bool) {
	for i := 0; i < len(body); i++ {
		if body[i] == ':' {
			return body[:i], body[i+1:], true
		}
		if body[i] == '/' {
			break
		}
	}
	return "", "", false
}
