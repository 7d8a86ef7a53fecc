package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitegen-ai/sitegen/internal/user"
)

func TestUserRegister(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	handler := ts.srv.Handler()

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(body))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	t.Run("success", func(t *testing.T) {
		w := post(`{"account":"alice","password":"hunter2hunter2","checkPassword":"hunter2hunter2"}`)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Body.String(), `"username":"alice"`)
	})

	t.Run("duplicate account", func(t *testing.T) {
		w := post(`{"account":"alice","password":"hunter2hunter2","checkPassword":"hunter2hunter2"}`)
		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("password mismatch", func(t *testing.T) {
		w := post(`{"account":"bob1","password":"hunter2hunter2","checkPassword":"different"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "password_mismatch")
	})

	t.Run("weak password", func(t *testing.T) {
		w := post(`{"account":"carol","password":"short","checkPassword":"short"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("invalid body", func(t *testing.T) {
		w := post(`not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUserLoginLogout(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.users.accounts["alice"] = &user.User{ID: 1, Username: "alice", Role: user.RoleUser}
	handler := ts.srv.Handler()

	// Login sets the session cookie.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"account":"alice","password":"hunter2hunter2"}`))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == SessionCookie {
			session = c
		}
	}
	require.NotNil(t, session, "login must set the session cookie")
	assert.True(t, session.HttpOnly)
	assert.NotEmpty(t, session.Value)

	// The cookie authenticates /me.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	// Logout invalidates it.
	req = httptest.NewRequest(http.MethodPost, "/api/v1/users/logout", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	req.AddCookie(session)
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserLogin_WrongCredentials(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)
	ts.users.accounts["alice"] = &user.User{ID: 1, Username: "alice", Role: user.RoleUser}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/login",
		strings.NewReader(`{"account":"alice","password":"wrong"}`))
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_credentials")
}

func TestMe_Unauthenticated(t *testing.T) {
	t.Parallel()

	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
