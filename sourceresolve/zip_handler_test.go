package sourceresolve

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, contents := range files {
		f, err := w.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestZipHandlerDownloadsAndExtractsOverHTTP(t *testing.T) {
	archive := buildTestZip(t, map[string]string{
		"foundation/bundle.yaml": "name: foundation",
	})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(archive)
	}))
	defer srv.Close()

	uri := "zip+" + srv.URL + "/bundle.zip#subdirectory=foundation"
	r := NewResolver(t.TempDir(), ZipHandler{Client: srv.Client()})

	res, err := r.Resolve(context.Background(), uri)
	require.NoError(t, err)
	require.True(t, res.IsSubdirectory())

	contents, err := os.ReadFile(filepath.Join(res.ActivePath, "bundle.yaml"))
	require.NoError(t, err)
	require.Equal(t, "name: foundation", string(contents))
}

func TestZipHandlerExtractsLocalArchive(t *testing.T) {
	archive := buildTestZip(t, map[string]string{"bundle.yaml": "name: local"})
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "archive.zip")
	require.NoError(t, os.WriteFile(archivePath, archive, 0o644))

	uri := "zip+file://" + archivePath
	r := NewResolver(t.TempDir(), ZipHandler{})

	res, err := r.Resolve(context.Background(), uri)
	require.NoError(t, err)

	contents, err := os.ReadFile(filepath.Join(res.ActivePath, "bundle.yaml"))
	require.NoError(t, err)
	require.Equal(t, "name: local", string(contents))
}

func TestExtractZipRejectsPathTraversal(t *testing.T) {
	archive := buildTestZip(t, map[string]string{"../../etc/passwd": "pwned"})
	dir := t.TempDir()
	archivePath := filepath.Join(dir, "malicious.zip")
	require.NoError(t, os.WriteFile(archivePath, archive, 0o644))

	err := extractZip(archivePath, filepath.Join(dir, "extracted"))
	var invalidArchive *InvalidArchiveError
	require.ErrorAs(t, err, &invalidArchive)
}
