package sourceresolve

import (
	"context"
	"os"
	"path/filepath"
)

// FileHandler resolves file:// URIs and plain local paths. Cacheable by
// canonicalized path per §4.1.
type FileHandler struct{}

func (FileHandler) CanHandle(p ParsedURI) bool { return p.Scheme == "file" }

func (FileHandler) CacheKey(p ParsedURI) string {
	abs, err := filepath.Abs(p.Path)
	if err != nil {
		abs = p.Path
	}
	return "file:" + filepath.Clean(abs)
}

func (FileHandler) Resolve(_ context.Context, p ParsedURI, _ string) (ResolvedSource, error) {
	root, err := filepath.Abs(p.Path)
	if err != nil {
		return ResolvedSource{}, err
	}
	root = filepath.Clean(root)

	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return ResolvedSource{}, &NotFoundError{Path: root}
		}
		if os.IsPermission(err) {
			return ResolvedSource{}, &PermissionDeniedError{Path: root, Cause: err}
		}
		return ResolvedSource{}, err
	}

	return ResolvedSource{
		SourceRoot: root,
		ActivePath: joinSubpath(root, p.Subpath),
	}, nil
}
