package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// SessionCookie is the name of the authentication cookie.
const SessionCookie = "sitegen_session"

type userCtxKey struct{}

// currentUser returns the authenticated account stored on the request
// context by sessionAuth, or nil.
func currentUser(ctx context.Context) *user.User {
	u, _ := ctx.Value(userCtxKey{}).(*user.User)
	return u
}

// sessionAuth resolves the session cookie to an account.
type sessionAuth struct {
	users  UserDirectory
	logger log.Logger
}

func newSessionAuth(users UserDirectory, logger log.Logger) *sessionAuth {
	return &sessionAuth{users: users, logger: logger}
}

// require wraps a handler so it only runs with a valid session; the
// resolved account rides on the request context.
func (a *sessionAuth) require(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(SessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "login required", a.logger)
			return
		}

		u, err := a.users.BySession(r.Context(), cookie.Value)
		if err != nil {
			if errors.Is(err, user.ErrSessionInvalid) {
				clearSessionCookie(w)
				writeError(w, http.StatusUnauthorized, "unauthenticated", "session expired", a.logger)
				return
			}
			a.logger.Error("resolving session", "error", err)
			writeError(w, http.StatusInternalServerError, "internal", "internal server error", a.logger)
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userCtxKey{}, u)))
	}
}

// requireAdmin layers an admin role check on require.
func (a *sessionAuth) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return a.require(func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r.Context()).Role != user.RoleAdmin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role required", a.logger)
			return
		}
		next(w, r)
	})
}

// setSessionCookie installs the session token. Secure is left to the
// reverse proxy termination; SameSite=Lax blocks cross-site sends.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(user.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
