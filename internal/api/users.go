package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// UserHandler serves account endpoints.
type UserHandler struct {
	users  UserDirectory
	logger log.Logger
}

// NewUserHandler creates a user handler.
func NewUserHandler(users UserDirectory, logger log.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes registers account routes on the given mux.
func (h *UserHandler) RegisterRoutes(mux *http.ServeMux, auth *sessionAuth) {
	mux.HandleFunc("POST /api/v1/users/register", h.register)
	mux.HandleFunc("POST /api/v1/users/login", h.login)
	mux.HandleFunc("POST /api/v1/users/logout", h.logout)
	mux.HandleFunc("GET /api/v1/users/me", auth.require(h.me))
}

// RegisterRequest is the body for POST /api/v1/users/register.
type RegisterRequest struct {
	Account       string `json:"account"`
	Password      string `json:"password"`
	CheckPassword string `json:"checkPassword"`
}

func (h *UserHandler) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}
	if req.Password != req.CheckPassword {
		writeError(w, http.StatusBadRequest, "password_mismatch", "passwords do not match", h.logger)
		return
	}

	u, err := h.users.Register(r.Context(), req.Account, req.Password)
	switch {
	case errors.Is(err, user.ErrInvalidUsername), errors.Is(err, user.ErrWeakPassword):
		writeError(w, http.StatusBadRequest, "invalid_account", err.Error(), h.logger)
		return
	case errors.Is(err, user.ErrUsernameTaken):
		writeError(w, http.StatusConflict, "account_taken", "account is already registered", h.logger)
		return
	case err != nil:
		h.logger.Error("registering account", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, u, h.logger)
}

// LoginRequest is the body for POST /api/v1/users/login.
type LoginRequest struct {
	Account  string `json:"account"`
	Password string `json:"password"`
}

func (h *UserHandler) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body", h.logger)
		return
	}

	u, token, err := h.users.Login(r.Context(), req.Account, req.Password)
	switch {
	case errors.Is(err, user.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", "wrong account or password", h.logger)
		return
	case err != nil:
		h.logger.Error("logging in", "error", err)
		writeError(w, http.StatusInternalServerError, "internal", "internal server error", h.logger)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, u, h.logger)
}

// logout invalidates the session if one is presented. Always succeeds
// so a stale client can clear its state.
func (h *UserHandler) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		if err := h.users.Logout(r.Context(), cookie.Value); err != nil {
			h.logger.Error("logging out", "error", err)
		}
	}
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r.Context()), h.logger)
}
