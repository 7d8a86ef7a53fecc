package api

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/codegen"
	"github.com/sitegen-ai/sitegen/internal/testutil"
	"github.com/sitegen-ai/sitegen/internal/user"
)

func TestAppCreate(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	cookie := ts.login(1, "alice", user.RoleUser)
	handler := ts.srv.Handler()

	t.Run("success", func(t *testing.T) {
		body := `{"initPrompt":"a coffee shop landing page","genType":"html"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps", strings.NewReader(body))
		req.AddCookie(cookie)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var app apps.App
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &app))
		assert.Equal(t, int64(1), app.OwnerID)
		assert.Equal(t, apps.GenHTML, app.GenType)
	})

	t.Run("invalid generation type", func(t *testing.T) {
		body := `{"initPrompt":"x","genType":"vue"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps", strings.NewReader(body))
		req.AddCookie(cookie)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_gen_type")
	})

	t.Run("missing prompt", func(t *testing.T) {
		body := `{"genType":"html"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps", strings.NewReader(body))
		req.AddCookie(cookie)
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unauthenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestAppOwnership(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	owner := ts.login(1, "alice", user.RoleUser)
	intruder := ts.login(2, "mallory", user.RoleUser)
	admin := ts.login(3, "root", user.RoleAdmin)
	ts.apps.add(&apps.App{ID: 10, OwnerID: 1, Name: "shop", GenType: apps.GenHTML})
	handler := ts.srv.Handler()

	get := func(cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, get(owner).Code)
	assert.Equal(t, http.StatusForbidden, get(intruder).Code)
	assert.Equal(t, http.StatusOK, get(admin).Code, "admin sees all apps")

	t.Run("missing app", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/999", nil)
		req.AddCookie(owner)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("bad id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/abc", nil)
		req.AddCookie(owner)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAppUpdateAndDelete(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	owner := ts.login(1, "alice", user.RoleUser)
	ts.apps.add(&apps.App{ID: 10, OwnerID: 1, Name: "shop", GenType: apps.GenHTML})
	handler := ts.srv.Handler()

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/apps/10", strings.NewReader(`{"name":"boutique"}`))
	req.AddCookie(owner)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "boutique", ts.apps.byID[10].Name)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/apps/10", nil)
	req.AddCookie(owner)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NotContains(t, ts.apps.byID, int64(10))
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()

	t.Run("completed stream ends with done", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})
		ts.gen.deltas = []string{"<html>", "</html>"}

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code?message=hello", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

		events := testutil.ParseSSEEvents(t, w.Body.String())
		assert.Equal(t, []string{"<html>", "</html>"}, testutil.Deltas(t, events))

		done := testutil.FindEvent(events, "done")
		require.NotNil(t, done, "stream must end with a done event")
		assert.Nil(t, testutil.FindEvent(events, "business-error"))
		// done is the last event on the wire.
		assert.Equal(t, "done", events[len(events)-1].Type)
	})

	t.Run("failed stream ends with business-error", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})
		ts.gen.deltas = []string{"partial"}
		ts.gen.err = codegen.NewBusinessError("model quota exhausted")
		ts.gen.errAfter = 1

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code?message=hello", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		assert.Equal(t, []string{"partial"}, testutil.Deltas(t, events))

		assert.Nil(t, testutil.FindEvent(events, "done"))
		errEvent := testutil.FindEvent(events, "business-error")
		require.NotNil(t, errEvent)
		assert.Contains(t, errEvent.Data, "model quota exhausted")
	})

	t.Run("internal errors are not leaked", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})
		ts.gen.err = errBoom

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code?message=hello", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)

		events := testutil.ParseSSEEvents(t, w.Body.String())
		errEvent := testutil.FindEvent(events, "business-error")
		require.NotNil(t, errEvent)
		assert.NotContains(t, errEvent.Data, "boom")
		assert.Contains(t, errEvent.Data, "generation failed")
	})

	t.Run("edit flag reaches the generator", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code?message=bolder&edit=true", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)

		assert.True(t, ts.gen.lastEdit)
		assert.Equal(t, "bolder", ts.gen.lastMsg)
	})

	t.Run("missing message", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		ts.srv.Handler().ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rate limited", func(t *testing.T) {
		t.Parallel()

		ts := newTestServer(t)
		ts.srv.apps.limiter = newRateLimiter(0, 1) // one token, no refill
		cookie := ts.login(1, "alice", user.RoleUser)
		ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})
		handler := ts.srv.Handler()

		for i, want := range []int{http.StatusOK, http.StatusTooManyRequests} {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/chat/gen/code?message=hi", nil)
			req.AddCookie(cookie)
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, want, w.Code, "request %d", i)
		}
	})
}

func TestAppDeploy(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	cookie := ts.login(1, "alice", user.RoleUser)
	ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenHTML})
	handler := ts.srv.Handler()

	t.Run("nothing generated yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps/10/deploy", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("publishes the artifact", func(t *testing.T) {
		dir := codegen.ArtifactDir(ts.opts.OutputRoot, apps.GenHTML, 10)
		require.NoError(t, os.MkdirAll(dir, 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>live</p>"), 0o640))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps/10/deploy", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]string
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "abc123", resp["deployKey"])
		assert.Equal(t, "http://localhost:8123/static/abc123/", resp["url"])

		deployed, err := os.ReadFile(filepath.Join(ts.opts.DeployRoot, "abc123", "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "<p>live</p>", string(deployed))
	})

	t.Run("redeploy replaces the previous copy", func(t *testing.T) {
		dir := codegen.ArtifactDir(ts.opts.OutputRoot, apps.GenHTML, 10)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>v2</p>"), 0o640))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/apps/10/deploy", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		deployed, err := os.ReadFile(filepath.Join(ts.opts.DeployRoot, "abc123", "index.html"))
		require.NoError(t, err)
		assert.Equal(t, "<p>v2</p>", string(deployed))
	})
}

func TestAppDownload(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	cookie := ts.login(1, "alice", user.RoleUser)
	ts.apps.add(&apps.App{ID: 10, OwnerID: 1, GenType: apps.GenMultiFile})
	handler := ts.srv.Handler()

	t.Run("nothing generated yet", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/download", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "nothing_generated")
	})

	t.Run("archives the artifact", func(t *testing.T) {
		dir := codegen.ArtifactDir(ts.opts.OutputRoot, apps.GenMultiFile, 10)
		require.NoError(t, os.MkdirAll(filepath.Join(dir, "assets"), 0o750))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>zip me</p>"), 0o640))
		require.NoError(t, os.WriteFile(filepath.Join(dir, "assets", "app.css"), []byte("body{}"), 0o640))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/download", nil)
		req.AddCookie(cookie)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Header().Get("Content-Disposition"), "app-10.zip")

		zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
		require.NoError(t, err)

		got := map[string]string{}
		for _, f := range zr.File {
			if f.FileInfo().IsDir() {
				continue
			}
			rc, err := f.Open()
			require.NoError(t, err)
			data, err := io.ReadAll(rc)
			require.NoError(t, err)
			require.NoError(t, rc.Close())
			got[f.Name] = string(data)
		}
		assert.Equal(t, map[string]string{
			"index.html":     "<p>zip me</p>",
			"assets/app.css": "body{}",
		}, got)
	})

	t.Run("foreign app forbidden", func(t *testing.T) {
		other := ts.login(2, "mallory", user.RoleUser)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/apps/10/download", nil)
		req.AddCookie(other)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
