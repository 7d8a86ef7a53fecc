package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// AdminHandler serves the management surface: listing every app in the
// system and updating or removing apps regardless of owner. All routes
// require the admin role.
type AdminHandler struct {
	apps   AppDirectory
	logger log.Logger
}

// NewAdminHandler creates an admin handler.
func NewAdminHandler(store AppDirectory, logger log.Logger) *AdminHandler {
	return &AdminHandler{apps: store, logger: logger}
}

// RegisterRoutes registers admin routes on the given mux.
func (h *AdminHandler) RegisterRoutes(mux *http.ServeMux, auth *sessionAuth) {
	mux.HandleFunc("GET /api/v1/admin/apps", auth.requireAdmin(h.list))
	mux.HandleFunc("GET /api/v1/admin/apps/{id}", auth.requireAdmin(h.detail))
	mux.HandleFunc("PATCH /api/v1/admin/apps/{id}", auth.requireAdmin(h.update))
	mux.HandleFunc("DELETE /api/v1/admin/apps/{id}", auth.requireAdmin(h.remove))
}

// list returns one page of all apps. Query: page (1-based), size.
func (h *AdminHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	list, total, err := h.apps.ListAll(r.Context(), page, size)
	if err != nil {
		h.logger.Error("listing all apps", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"apps": list, "total": total}, h.logger)
}

func (h *AdminHandler) detail(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	app, err := h.apps.ByID(r.Context(), id)
	if errors.Is(err, apps.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "app not found", h.logger)
		return
	}
	if err != nil {
		h.logger.Error("loading app", "app_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}
	writeJSON(w, http.StatusOK, app, h.logger)
}

// AdminUpdateRequest is the body for PATCH /api/v1/admin/apps/{id}.
// Featured is a pointer so "leave unchanged" and "set false" are
// distinguishable.
type AdminUpdateRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Featured    *bool  `json:"featured"`
}

func (h *AdminHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	var req AdminUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Name == "" && req.Featured == nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "name or featured is required", h.logger)
		return
	}
	if len(req.Name) > MaxAppNameLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "name too long", h.logger)
		return
	}

	if req.Name != "" {
		if _, err := h.apps.UpdateAny(r.Context(), id, req.Name, req.Description); h.writeAdminError(w, err, "updating app") {
			return
		}
	}
	if req.Featured != nil {
		if err := h.apps.SetFeatured(r.Context(), id, *req.Featured); h.writeAdminError(w, err, "setting featured flag") {
			return
		}
	}

	app, err := h.apps.ByID(r.Context(), id)
	if h.writeAdminError(w, err, "loading app") {
		return
	}
	writeJSON(w, http.StatusOK, app, h.logger)
}

func (h *AdminHandler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, h.logger)
	if !ok {
		return
	}

	if err := h.apps.DeleteAny(r.Context(), id); h.writeAdminError(w, err, "deleting app") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AdminHandler) writeAdminError(w http.ResponseWriter, err error, action string) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, apps.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "app not found", h.logger)
	default:
		h.logger.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
	}
	return true
}
