package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/codegen"
	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// fakeUsers is an in-memory UserDirectory keyed by session token.
type fakeUsers struct {
	accounts map[string]*user.User // username → account
	sessions map[string]*user.User // token → account
	nextID   int64
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		accounts: make(map[string]*user.User),
		sessions: make(map[string]*user.User),
	}
}

// addSession seeds an authenticated account and returns its token.
func (f *fakeUsers) addSession(u *user.User) string {
	token := fmt.Sprintf("token-%d", u.ID)
	f.sessions[token] = u
	return token
}

func (f *fakeUsers) Register(_ context.Context, username, password string) (*user.User, error) {
	if len(username) < user.MinUsernameLength {
		return nil, user.ErrInvalidUsername
	}
	if len(password) < user.MinPasswordLength {
		return nil, user.ErrWeakPassword
	}
	if _, ok := f.accounts[username]; ok {
		return nil, user.ErrUsernameTaken
	}
	f.nextID++
	u := &user.User{ID: f.nextID, Username: username, Role: user.RoleUser, CreatedAt: time.Now()}
	f.accounts[username] = u
	return u, nil
}

func (f *fakeUsers) Login(_ context.Context, username, password string) (*user.User, string, error) {
	u, ok := f.accounts[username]
	if !ok || password == "wrong" {
		return nil, "", user.ErrInvalidCredentials
	}
	return u, f.addSession(u), nil
}

func (f *fakeUsers) Logout(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeUsers) BySession(_ context.Context, token string) (*user.User, error) {
	u, ok := f.sessions[token]
	if !ok {
		return nil, user.ErrSessionInvalid
	}
	return u, nil
}

// fakeApps is an in-memory AppDirectory.
type fakeApps struct {
	byID    map[int64]*apps.App
	nextID  int64
	deployK string // key returned by AssignDeployKey
	err     error  // forced store error
}

func newFakeApps() *fakeApps {
	return &fakeApps{byID: make(map[int64]*apps.App), deployK: "abc123"}
}

func (f *fakeApps) add(app *apps.App) *apps.App {
	f.byID[app.ID] = app
	return app
}

func (f *fakeApps) Create(_ context.Context, ownerID int64, name, initPrompt string, genType apps.GenType) (*apps.App, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.nextID++
	app := &apps.App{
		ID: f.nextID, OwnerID: ownerID, Name: name,
		InitPrompt: initPrompt, GenType: genType, CreatedAt: time.Now(),
	}
	f.byID[app.ID] = app
	return app, nil
}

func (f *fakeApps) ByID(_ context.Context, id int64) (*apps.App, error) {
	if f.err != nil {
		return nil, f.err
	}
	app, ok := f.byID[id]
	if !ok {
		return nil, apps.ErrNotFound
	}
	return app, nil
}

func (f *fakeApps) ByDeployKey(_ context.Context, key string) (*apps.App, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, app := range f.byID {
		if app.DeployKey == key {
			return app, nil
		}
	}
	return nil, apps.ErrNotFound
}

func (f *fakeApps) ListByOwner(_ context.Context, ownerID int64) ([]apps.App, error) {
	var out []apps.App
	for _, app := range f.byID {
		if app.OwnerID == ownerID {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeApps) ListFeatured(_ context.Context, _ int) ([]apps.App, error) {
	var out []apps.App
	for _, app := range f.byID {
		if app.Featured {
			out = append(out, *app)
		}
	}
	return out, nil
}

func (f *fakeApps) ListAll(_ context.Context, page, size int) ([]apps.App, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	var all []apps.App
	for _, app := range f.byID {
		all = append(all, *app)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID > all[j].ID })
	total := int64(len(all))
	start := (page - 1) * size
	if start >= len(all) {
		return []apps.App{}, total, nil
	}
	end := min(start+size, len(all))
	return all[start:end], total, nil
}

func (f *fakeApps) UpdateAny(_ context.Context, id int64, name, description string) (*apps.App, error) {
	app, ok := f.byID[id]
	if !ok {
		return nil, apps.ErrNotFound
	}
	app.Name = name
	app.Description = description
	return app, nil
}

func (f *fakeApps) SetFeatured(_ context.Context, id int64, featured bool) error {
	app, ok := f.byID[id]
	if !ok {
		return apps.ErrNotFound
	}
	app.Featured = featured
	return nil
}

func (f *fakeApps) DeleteAny(_ context.Context, id int64) error {
	if _, ok := f.byID[id]; !ok {
		return apps.ErrNotFound
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeApps) Update(_ context.Context, id, ownerID int64, name, description string) (*apps.App, error) {
	app, ok := f.byID[id]
	if !ok {
		return nil, apps.ErrNotFound
	}
	if app.OwnerID != ownerID {
		return nil, apps.ErrForbidden
	}
	if name != "" {
		app.Name = name
	}
	if description != "" {
		app.Description = description
	}
	return app, nil
}

func (f *fakeApps) Delete(_ context.Context, id, ownerID int64) error {
	app, ok := f.byID[id]
	if !ok {
		return apps.ErrNotFound
	}
	if app.OwnerID != ownerID {
		return apps.ErrForbidden
	}
	delete(f.byID, id)
	return nil
}

func (f *fakeApps) AssignDeployKey(_ context.Context, id int64) (string, error) {
	app, ok := f.byID[id]
	if !ok {
		return "", apps.ErrNotFound
	}
	app.DeployKey = f.deployK
	return f.deployK, nil
}

// fakeHistoryReader pages a fixed slice with the store's newest-first
// (CreatedAt, ID) ordering.
type fakeHistoryReader struct {
	turns []history.Turn
	err   error
}

func (f *fakeHistoryReader) List(_ context.Context, _ int64, before history.Cursor, pageSize int) ([]history.Turn, history.Cursor, error) {
	if f.err != nil {
		return nil, history.Cursor{}, f.err
	}
	if pageSize <= 0 {
		pageSize = history.DefaultPageSize
	}

	ordered := append([]history.Turn(nil), f.turns...)
	sort.Slice(ordered, func(i, j int) bool {
		if !ordered[i].CreatedAt.Equal(ordered[j].CreatedAt) {
			return ordered[i].CreatedAt.After(ordered[j].CreatedAt)
		}
		return ordered[i].ID > ordered[j].ID
	})

	var page []history.Turn
	for _, t := range ordered {
		if !before.IsZero() && !turnBeforeCursor(t, before) {
			continue
		}
		page = append(page, t)
	}
	if len(page) > pageSize {
		page = page[:pageSize]
		last := page[len(page)-1]
		return page, history.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}, nil
	}
	return page, history.Cursor{}, nil
}

func turnBeforeCursor(t history.Turn, c history.Cursor) bool {
	if t.CreatedAt.Equal(c.CreatedAt) {
		return t.ID < c.ID
	}
	return t.CreatedAt.Before(c.CreatedAt)
}

// fakeGenerator streams scripted deltas.
type fakeGenerator struct {
	deltas   []string
	err      error // returned after streaming errAfter deltas
	errAfter int
	lastEdit bool
	lastMsg  string
}

func (f *fakeGenerator) Generate(ctx context.Context, _ *apps.App, message string, editMode bool, onDelta codegen.StreamCallback) error {
	f.lastMsg = message
	f.lastEdit = editMode
	for i, d := range f.deltas {
		if f.err != nil && i >= f.errAfter {
			return f.err
		}
		if err := onDelta(ctx, d); err != nil {
			return err
		}
	}
	return f.err
}

// testServer bundles a server with its fakes.
type testServer struct {
	srv   *Server
	users *fakeUsers
	apps  *fakeApps
	hist  *fakeHistoryReader
	gen   *fakeGenerator
	opts  Options
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		users: newFakeUsers(),
		apps:  newFakeApps(),
		hist:  &fakeHistoryReader{},
		gen:   &fakeGenerator{},
		opts: Options{
			CORSOrigins: []string{"http://localhost:5173"},
			RateBurst:   100,
			OutputRoot:  t.TempDir(),
			DeployRoot:  t.TempDir(),
			DeployHost:  "http://localhost:8123/static",
		},
	}

	srv, err := NewServer(nil, ts.users, ts.apps, ts.hist, ts.gen, ts.opts, log.NewNop())
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	ts.srv = srv
	return ts
}

// login seeds an account with a live session and returns its cookie.
func (ts *testServer) login(id int64, username string, role user.Role) *http.Cookie {
	u := &user.User{ID: id, Username: username, Role: role, CreatedAt: time.Now()}
	ts.users.accounts[username] = u
	token := ts.users.addSession(u)
	return &http.Cookie{Name: SessionCookie, Value: token}
}

var errBoom = errors.New("boom")
