package sourceresolve

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// ZipHandler resolves zip+http(s):// and zip+file:// URIs: fetch (or open)
// the archive, extract once to cache/zip/<hash>/, then serve
// source_root/subpath per the #subdirectory= fragment.
type ZipHandler struct {
	Client *http.Client
}

func (z ZipHandler) client() *http.Client {
	if z.Client != nil {
		return z.Client
	}
	return http.DefaultClient
}

func (ZipHandler) CanHandle(p ParsedURI) bool { return p.IsZip() }

func (ZipHandler) CacheKey(p ParsedURI) string {
	return "zip:" + hashKey(p.Scheme, p.Host, p.Path)
}

func (z ZipHandler) Resolve(ctx context.Context, p ParsedURI, cacheDir string) (ResolvedSource, error) {
	extractDir := filepath.Join(cacheDir, "zip", hashKey(p.Scheme, p.Host, p.Path))

	if info, err := os.Stat(extractDir); err == nil && info.IsDir() {
		return ResolvedSource{
			SourceRoot: extractDir,
			ActivePath: joinSubpath(extractDir, p.Subpath),
		}, nil
	}

	archivePath, err := z.fetchArchive(ctx, p, cacheDir)
	if err != nil {
		return ResolvedSource{}, err
	}

	if err := extractZip(archivePath, extractDir); err != nil {
		return ResolvedSource{}, err
	}

	return ResolvedSource{
		SourceRoot: extractDir,
		ActivePath: joinSubpath(extractDir, p.Subpath),
	}, nil
}

// fetchArchive returns a local path to the zip, downloading it first when
// the scheme underneath zip+ is http/https.
func (z ZipHandler) fetchArchive(ctx context.Context, p ParsedURI, cacheDir string) (string, error) {
	innerScheme := strings.TrimPrefix(p.Scheme, "zip+")

	if innerScheme == "file" {
		if _, err := os.Stat(p.Path); err != nil {
			if os.IsNotExist(err) {
				return "", &NotFoundError{Path: p.Path}
			}
			return "", err
		}
		return p.Path, nil
	}

	url := innerScheme + "://" + p.Host + p.Path
	dir := filepath.Join(cacheDir, "zip-download", hashKey(p.Scheme, p.Host, p.Path))
	dest := filepath.Join(dir, "archive.zip")

	if _, err := os.Stat(dest); err == nil {
		return dest, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := z.client().Do(req)
	if err != nil {
		return "", &NetworkError{URL: url, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", &NotFoundError{Path: url}
	}
	if resp.StatusCode != http.StatusOK {
		return "", &NetworkError{URL: url, Cause: fmt.Errorf("HTTP %d", resp.StatusCode)}
	}

	out, err := os.Create(dest)
	if err != nil {
		return "", err
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return "", &NetworkError{URL: url, Cause: err}
	}

	return dest, nil
}

// extractZip unpacks src into dest, refusing entries that would escape dest
// via path traversal (e.g. "../../etc/passwd" inside the archive).
func extractZip(src, dest string) error {
	r, err := zip.OpenReader(src)
	if err != nil {
		return &InvalidArchiveError{Path: src, Cause: err}
	}
	defer r.Close()

	if err := os.MkdirAll(dest, 0o755); err != nil {
		return err
	}

	for _, f := range r.File {
		target := filepath.Join(dest, f.Name)
		if !strings.HasPrefix(target, filepath.Clean(dest)+string(os.PathSeparator)) && target != filepath.Clean(dest) {
			return &InvalidArchiveError{Path: src, Cause: fmt.Errorf("entry %q escapes destination", f.Name)}
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		if err := extractZipFile(f, target); err != nil {
			return &InvalidArchiveError{Path: src, Cause: err}
		}
	}

	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, f.Mode())
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, rc)
	return err
}
