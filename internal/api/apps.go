package api

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/codegen"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// Input bounds for app endpoints.
const (
	MaxAppNameLength  = 100
	MaxPromptLength   = 10000
	MaxMessageLength  = 10000
	FeaturedListLimit = 20
)

// AppHandler serves application CRUD, deploy and the generation
// stream.
type AppHandler struct {
	apps    AppDirectory
	gen     Generator
	limiter *rateLimiter
	opts    Options
	logger  log.Logger
}

// NewAppHandler creates an app handler.
func NewAppHandler(store AppDirectory, gen Generator, opts Options, logger log.Logger) *AppHandler {
	return &AppHandler{
		apps:    store,
		gen:     gen,
		limiter: newRateLimiter(genRatePerSecond, opts.RateBurst),
		opts:    opts,
		logger:  logger,
	}
}

// RegisterRoutes registers app routes on the given mux.
func (h *AppHandler) RegisterRoutes(mux *http.ServeMux, auth *sessionAuth) {
	mux.HandleFunc("POST /api/v1/apps", auth.require(h.create))
	mux.HandleFunc("GET /api/v1/apps", auth.require(h.list))
	mux.HandleFunc("GET /api/v1/apps/featured", h.featured)
	mux.HandleFunc("GET /api/v1/apps/{id}", auth.require(h.detail))
	mux.HandleFunc("PATCH /api/v1/apps/{id}", auth.require(h.update))
	mux.HandleFunc("DELETE /api/v1/apps/{id}", auth.require(h.remove))
	mux.HandleFunc("POST /api/v1/apps/{id}/deploy", auth.require(h.deploy))
	mux.HandleFunc("GET /api/v1/apps/{id}/download", auth.require(h.download))
	mux.HandleFunc("GET /api/v1/apps/{id}/chat/gen/code", auth.require(h.generate))
}

// CreateAppRequest is the body for POST /api/v1/apps.
type CreateAppRequest struct {
	Name       string       `json:"name"`
	InitPrompt string       `json:"initPrompt"`
	GenType    apps.GenType `json:"genType"`
}

func (h *AppHandler) create(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	var req CreateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if len(req.Name) > MaxAppNameLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "name too long", h.logger)
		return
	}
	if req.InitPrompt == "" || len(req.InitPrompt) > MaxPromptLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "initPrompt is required and at most 10000 characters", h.logger)
		return
	}
	if !req.GenType.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_gen_type", "genType must be html, multi_file or project", h.logger)
		return
	}

	app, err := h.apps.Create(r.Context(), u.ID, req.Name, req.InitPrompt, req.GenType)
	if err != nil {
		h.logger.Error("creating app", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, app, h.logger)
}

func (h *AppHandler) list(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())

	list, err := h.apps.ListByOwner(r.Context(), u.ID)
	if err != nil {
		h.logger.Error("listing apps", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"apps": list, "total": len(list)}, h.logger)
}

func (h *AppHandler) featured(w http.ResponseWriter, r *http.Request) {
	list, err := h.apps.ListFeatured(r.Context(), FeaturedListLimit)
	if err != nil {
		h.logger.Error("listing featured apps", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"apps": list, "total": len(list)}, h.logger)
}

func (h *AppHandler) detail(w http.ResponseWriter, r *http.Request) {
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, app, h.logger)
}

// UpdateAppRequest is the body for PATCH /api/v1/apps/{id}.
type UpdateAppRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *AppHandler) update(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req UpdateAppRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if len(req.Name) > MaxAppNameLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "name too long", h.logger)
		return
	}

	app, err := h.apps.Update(r.Context(), id, u.ID, req.Name, req.Description)
	if h.writeStoreError(w, err, "updating app") {
		return
	}
	writeJSON(w, http.StatusOK, app, h.logger)
}

func (h *AppHandler) remove(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r.Context())
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.apps.Delete(r.Context(), id, u.ID); h.writeStoreError(w, err, "deleting app") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// generate streams one code generation turn as SSE.
// Query: message (required), edit (optional bool).
func (h *AppHandler) generate(w http.ResponseWriter, r *http.Request) {
	if !h.limiter.check(w, r, h.opts.TrustProxy, h.logger) {
		return
	}

	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" || len(message) > MaxMessageLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "message is required and at most 10000 characters", h.logger)
		return
	}
	editMode, _ := strconv.ParseBool(r.URL.Query().Get("edit"))

	stream, err := newStreamWriter(w)
	if err != nil {
		h.logger.Error("starting SSE stream", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "streaming unsupported", h.logger)
		return
	}

	genErr := h.gen.Generate(r.Context(), app, message, editMode,
		func(_ context.Context, delta string) error {
			return stream.WriteDelta(delta)
		})

	// Exactly one terminal event per stream. A disconnected client is
	// the only case where neither can be delivered.
	if genErr != nil {
		if r.Context().Err() != nil {
			h.logger.Debug("generation stream cancelled", "app_id", app.ID)
			return
		}
		h.logger.Error("generation failed", "app_id", app.ID, "error", genErr)
		if err := stream.WriteBusinessError(codegen.UserMessage(genErr)); err != nil {
			h.logger.Debug("writing terminal error event", "error", err)
		}
		return
	}
	if err := stream.WriteDone(); err != nil {
		h.logger.Debug("writing done event", "error", err)
	}
}

// deploy publishes the app's artifact under its deploy key and returns
// the public URL.
func (h *AppHandler) deploy(w http.ResponseWriter, r *http.Request) {
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}

	key, err := h.apps.AssignDeployKey(r.Context(), app.ID)
	if err != nil {
		h.logger.Error("assigning deploy key", "app_id", app.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	src := codegen.ArtifactDir(h.opts.OutputRoot, app.GenType, app.ID)
	if err := publishDir(src, h.opts.DeployRoot, key); err != nil {
		h.logger.Error("publishing artifact", "app_id", app.ID, "error", err)
		writeError(w, http.StatusConflict, "nothing_to_deploy", "generate the app before deploying", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"deployKey": key,
		"url":       h.opts.DeployHost + "/" + key + "/",
	}, h.logger)
}

// download streams the app's current artifact as a zip archive.
func (h *AppHandler) download(w http.ResponseWriter, r *http.Request) {
	app, ok := h.ownedApp(w, r)
	if !ok {
		return
	}

	dir := codegen.ArtifactDir(h.opts.OutputRoot, app.GenType, app.ID)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		writeError(w, http.StatusNotFound, "nothing_generated", "generate the app before downloading", h.logger)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", fmt.Sprintf("app-%d.zip", app.ID)))

	zw := zip.NewWriter(w)
	if err := zw.AddFS(os.DirFS(dir)); err != nil {
		// Headers are gone; all that remains is to log and truncate.
		h.logger.Error("archiving artifact", "app_id", app.ID, "error", err)
		return
	}
	if err := zw.Close(); err != nil {
		h.logger.Error("finishing artifact archive", "app_id", app.ID, "error", err)
	}
}

// ownedApp loads the app in the path and enforces owner-or-admin.
func (h *AppHandler) ownedApp(w http.ResponseWriter, r *http.Request) (*apps.App, bool) {
	return loadOwnedApp(w, r, h.apps, h.logger)
}

// loadOwnedApp resolves {id} to an app the caller may touch. Shared by
// the app and history handlers.
func loadOwnedApp(w http.ResponseWriter, r *http.Request, store AppDirectory, logger log.Logger) (*apps.App, bool) {
	u := currentUser(r.Context())
	id, ok := pathID(w, r, logger)
	if !ok {
		return nil, false
	}

	app, err := store.ByID(r.Context(), id)
	if errors.Is(err, apps.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "app not found", logger)
		return nil, false
	}
	if err != nil {
		logger.Error("loading app", "app_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", logger)
		return nil, false
	}
	if app.OwnerID != u.ID && u.Role != user.RoleAdmin {
		writeError(w, http.StatusForbidden, "forbidden", "app belongs to another user", logger)
		return nil, false
	}
	return app, true
}

// writeStoreError maps store sentinels to HTTP statuses; reports
// whether an error was written.
func (h *AppHandler) writeStoreError(w http.ResponseWriter, err error, action string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, apps.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "app not found", h.logger)
	case errors.Is(err, apps.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden", "app belongs to another user", h.logger)
	default:
		h.logger.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
	}
	return true
}

// pathID parses the {id} path segment.
func pathID(w http.ResponseWriter, r *http.Request, logger log.Logger) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid app id", logger)
		return 0, false
	}
	return id, true
}
