package api

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
)

func newStaticServer(t *testing.T) (*StaticHandler, string) {
	t.Helper()
	root := t.TempDir()

	site := filepath.Join(root, "abc123")
	require.NoError(t, os.MkdirAll(filepath.Join(site, "assets"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(site, "index.html"), []byte("<p>home</p>"), 0o640))
	require.NoError(t, os.WriteFile(filepath.Join(site, "assets", "app.css"), []byte("body{}"), 0o640))

	// Only leftover is deployed under this key without an app record.
	leftover := filepath.Join(root, "zzz999")
	require.NoError(t, os.MkdirAll(leftover, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(leftover, "index.html"), []byte("stale"), 0o640))

	directory := newFakeApps()
	directory.add(&apps.App{ID: 1, OwnerID: 1, GenType: apps.GenHTML, DeployKey: "abc123"})

	return NewStaticHandler(root, directory, log.NewNop()), root
}

func TestStaticServe(t *testing.T) {
	t.Parallel()

	h, _ := newStaticServer(t)
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	t.Run("file", func(t *testing.T) {
		w := get("/static/abc123/assets/app.css")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "body{}", w.Body.String())
	})

	t.Run("directory serves index.html", func(t *testing.T) {
		w := get("/static/abc123/")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "<p>home</p>", w.Body.String())
	})

	t.Run("directory without slash redirects", func(t *testing.T) {
		w := get("/static/abc123")
		require.Equal(t, http.StatusMovedPermanently, w.Code)
		assert.Equal(t, "/static/abc123/", w.Header().Get("Location"))
	})

	t.Run("key without an app record", func(t *testing.T) {
		// Files exist on disk for this key, but no app owns it anymore.
		assert.Equal(t, http.StatusNotFound, get("/static/zzz999/index.html").Code)
	})

	t.Run("unknown key", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/static/qqq777/index.html").Code)
	})

	t.Run("malformed key", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/static/ABC-12/index.html").Code)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, get("/static/abc123/nope.js").Code)
	})

	t.Run("path traversal", func(t *testing.T) {
		// The mux normalizes ../ into a redirect; encoded traversal must
		// not reach files outside the site dir either way.
		w := get("/static/abc123/%2e%2e/%2e%2e/etc/passwd")
		assert.NotEqual(t, http.StatusOK, w.Code)
	})
}
