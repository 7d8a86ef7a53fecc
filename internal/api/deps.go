package api

import (
	"context"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/codegen"
	"github.com/sitegen-ai/sitegen/internal/history"
	"github.com/sitegen-ai/sitegen/internal/user"
)

// UserDirectory is the slice of the account store the API uses.
// *user.Store satisfies it.
type UserDirectory interface {
	Register(ctx context.Context, username, password string) (*user.User, error)
	Login(ctx context.Context, username, password string) (*user.User, string, error)
	Logout(ctx context.Context, token string) error
	BySession(ctx context.Context, token string) (*user.User, error)
}

// AppDirectory is the slice of the app store the API uses.
// *apps.Store satisfies it. Update and Delete are owner-scoped; the
// Any variants and ListAll back the admin surface, SetFeatured the
// gallery toggle.
type AppDirectory interface {
	Create(ctx context.Context, ownerID int64, name, initPrompt string, genType apps.GenType) (*apps.App, error)
	ByID(ctx context.Context, id int64) (*apps.App, error)
	ByDeployKey(ctx context.Context, key string) (*apps.App, error)
	ListByOwner(ctx context.Context, ownerID int64) ([]apps.App, error)
	ListFeatured(ctx context.Context, limit int) ([]apps.App, error)
	ListAll(ctx context.Context, page, size int) ([]apps.App, int64, error)
	Update(ctx context.Context, id, ownerID int64, name, description string) (*apps.App, error)
	UpdateAny(ctx context.Context, id int64, name, description string) (*apps.App, error)
	SetFeatured(ctx context.Context, id int64, featured bool) error
	Delete(ctx context.Context, id, ownerID int64) error
	DeleteAny(ctx context.Context, id int64) error
	AssignDeployKey(ctx context.Context, id int64) (string, error)
}

// HistoryReader pages chat history. *history.Store satisfies it.
type HistoryReader interface {
	List(ctx context.Context, appID int64, before history.Cursor, pageSize int) ([]history.Turn, history.Cursor, error)
}

// Generator runs one generation turn, streaming deltas to onDelta.
// *codegen.Facade satisfies it.
type Generator interface {
	Generate(ctx context.Context, app *apps.App, message string, editMode bool, onDelta codegen.StreamCallback) error
}
