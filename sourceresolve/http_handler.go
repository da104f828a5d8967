package sourceresolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// HTTPHandler fetches a single file over http(s) (a bare bundle.yaml or
// bundle.md served directly, as opposed to an archive — see ZipHandler for
// zip+http(s)). Cached under cacheDir/http/<url-hash>/<basename>.
type HTTPHandler struct {
	Client *http.Client
}

func (h HTTPHandler) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return http.DefaultClient
}

func (HTTPHandler) CanHandle(p ParsedURI) bool { return p.IsHTTP() }

func (HTTPHandler) CacheKey(p ParsedURI) string {
	return "http:" + hashKey(p.Scheme, p.Host, p.Path, p.Subpath)
}

func (h HTTPHandler) Resolve(ctx context.Context, p ParsedURI, cacheDir string) (ResolvedSource, error) {
	url := p.Scheme + "://" + p.Host + p.Path
	dir := filepath.Join(cacheDir, "http", hashKey(p.Scheme, p.Host, p.Path))
	dest := filepath.Join(dir, filepath.Base(p.Path))

	if _, err := os.Stat(dest); err == nil {
		return ResolvedSource{SourceRoot: dest, ActivePath: dest}, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ResolvedSource{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return ResolvedSource{}, err
	}
	resp, err := h.client().Do(req)
	if err != nil {
		return ResolvedSource{}, &NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ResolvedSource{}, &NotFoundError{Path: url}
	}
	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusUnauthorized {
		return ResolvedSource{}, &PermissionDeniedError{Path: url, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return ResolvedSource{}, &NetworkError{URL: url, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	out, err := os.Create(dest)
	if err != nil {
		return ResolvedSource{}, err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return ResolvedSource{}, &NetworkError{URL: url, Cause: err}
	}

	return ResolvedSource{SourceRoot: dest, ActivePath: dest}, nil
}
