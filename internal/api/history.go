package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// HistoryHandler serves chat history pages.
type HistoryHandler struct {
	apps    AppDirectory
	history HistoryReader
	logger  log.Logger
}

// NewHistoryHandler creates a history handler. The app directory backs
// the ownership check.
func NewHistoryHandler(apps AppDirectory, hist HistoryReader, logger log.Logger) *HistoryHandler {
	return &HistoryHandler{apps: apps, history: hist, logger: logger}
}

// RegisterRoutes registers history routes on the given mux.
func (h *HistoryHandler) RegisterRoutes(mux *http.ServeMux, auth *sessionAuth) {
	mux.HandleFunc("GET /api/v1/apps/{id}/history", auth.require(h.list))
}

// HistoryPage is the response for GET /api/v1/apps/{id}/history.
// NextCursor is empty on the last page; otherwise pass it back as
// ?cursor= for the next (older) page.
type HistoryPage struct {
	Turns      []history.Turn `json:"turns"`
	NextCursor string         `json:"nextCursor"`
}

// Cursor tokens are "<unix-microseconds>-<turn-id>". The id component
// breaks timestamp ties so no turn is skipped between pages.
func formatCursor(c history.Cursor) string {
	return strconv.FormatInt(c.CreatedAt.UnixMicro(), 10) + "-" + strconv.FormatInt(c.ID, 10)
}

func parseCursor(raw string) (history.Cursor, error) {
	tsPart, idPart, ok := strings.Cut(raw, "-")
	if !ok {
		return history.Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	ts, tsErr := strconv.ParseInt(tsPart, 10, 64)
	id, idErr := strconv.ParseInt(idPart, 10, 64)
	if tsErr != nil || idErr != nil || ts <= 0 || id <= 0 {
		return history.Cursor{}, fmt.Errorf("malformed cursor %q", raw)
	}
	return history.Cursor{CreatedAt: time.UnixMicro(ts), ID: id}, nil
}

// list returns turns newest-first, paged backwards in time.
func (h *HistoryHandler) list(w http.ResponseWriter, r *http.Request) {
	app, ok := loadOwnedApp(w, r, h.apps, h.logger)
	if !ok {
		return
	}

	q := r.URL.Query()
	size, _ := strconv.Atoi(q.Get("size"))

	var before history.Cursor
	if raw := q.Get("cursor"); raw != "" {
		c, err := parseCursor(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid cursor", h.logger)
			return
		}
		before = c
	}

	turns, next, err := h.history.List(r.Context(), app.ID, before, size)
	if err != nil {
		h.logger.Error("listing history", "app_id", app.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	page := HistoryPage{Turns: turns}
	if !next.IsZero() {
		page.NextCursor = formatCursor(next)
	}
	if page.Turns == nil {
		page.Turns = []history.Turn{}
	}
	writeJSON(w, http.StatusOK, page, h.logger)
}
