package api

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/security"
)

// StaticHandler serves deployed sites from the deploy root. Keys are
// checked against the app directory so a revoked or never-issued key
// does not serve leftover files.
type StaticHandler struct {
	root   string
	apps   AppDirectory
	logger log.Logger
}

// NewStaticHandler creates a static handler rooted at the deploy dir.
func NewStaticHandler(root string, store AppDirectory, logger log.Logger) *StaticHandler {
	return &StaticHandler{root: root, apps: store, logger: logger}
}

// RegisterRoutes registers static routes on the given mux.
func (h *StaticHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /static/{deployKey}", h.serve)
	mux.HandleFunc("GET /static/{deployKey}/{path...}", h.serve)
}

// serve maps /static/{deployKey}/... onto the deployed directory.
// Directory URLs without a trailing slash redirect so relative asset
// links resolve; directories serve their index.html.
func (h *StaticHandler) serve(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("deployKey")
	if !security.ValidDeployKey(key) {
		http.NotFound(w, r)
		return
	}

	if _, err := h.apps.ByDeployKey(r.Context(), key); err != nil {
		if !errors.Is(err, apps.ErrNotFound) {
			h.logger.Error("resolving deploy key", "key", key, "error", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		http.NotFound(w, r)
		return
	}

	validator, err := security.NewPathValidator(filepath.Join(h.root, key))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	target, err := validator.Resolve(r.PathValue("path"))
	if err != nil {
		h.logger.Debug("rejected static path", "key", key, "path", r.PathValue("path"))
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(target)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if info.IsDir() {
		if r.URL.Path[len(r.URL.Path)-1] != '/' {
			http.Redirect(w, r, r.URL.Path+"/", http.StatusMovedPermanently)
			return
		}
		target = filepath.Join(target, "index.html")
	}

	http.ServeFile(w, r, target)
}
