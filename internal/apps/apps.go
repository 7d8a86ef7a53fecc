// Package apps manages application records: the unit a user chats
// with, generates code for, and deploys. Generated files live on disk
// under a per-app workspace; this package owns only the metadata.
package apps

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitegen-ai/sitegen/internal/log"
)

// GenType selects which generation strategy an app uses.
type GenType string

const (
	GenHTML      GenType = "html"
	GenMultiFile GenType = "multi_file"
	GenProject   GenType = "project"
)

// Valid reports whether t is a known generation type.
func (t GenType) Valid() bool {
	switch t {
	case GenHTML, GenMultiFile, GenProject:
		return true
	}
	return false
}

// App is one user application.
type App struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"ownerId"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	GenType     GenType   `json:"genType"`
	InitPrompt  string    `json:"initPrompt"`
	DeployKey   string    `json:"deployKey,omitempty"`
	Featured    bool      `json:"featured"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Sentinel errors. Check with errors.Is().
var (
	ErrNotFound  = errors.New("app not found")
	ErrForbidden = errors.New("app belongs to another user")
)

const deployKeyAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// deployKeyAttempts bounds retries on the (unlikely) unique collision.
const deployKeyAttempts = 5

const appCols = `id, owner_id, name, description, gen_type, init_prompt,
	COALESCE(deploy_key, ''), featured, created_at, updated_at`

// Store reads and writes app records. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates an app Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Create records a new app. The initial prompt decides the app's name
// when none is given and is kept for display.
func (s *Store) Create(ctx context.Context, ownerID int64, name, initPrompt string, genType GenType) (*App, error) {
	if !genType.Valid() {
		return nil, fmt.Errorf("invalid generation type %q", genType)
	}
	if name == "" {
		name = deriveName(initPrompt)
	}
	if name == "" {
		return nil, fmt.Errorf("name or initial prompt is required")
	}

	a := &App{OwnerID: ownerID, Name: name, GenType: genType, InitPrompt: initPrompt}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO apps (owner_id, name, gen_type, init_prompt)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, description, featured, created_at, updated_at`,
		ownerID, name, genType, initPrompt,
	).Scan(&a.ID, &a.Description, &a.Featured, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting app: %w", err)
	}

	s.logger.Info("app created", "app_id", a.ID, "owner_id", ownerID, "gen_type", genType)
	return a, nil
}

// ByID fetches an app.
func (s *Store) ByID(ctx context.Context, id int64) (*App, error) {
	a := &App{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+appCols+` FROM apps WHERE id = $1`, id,
	).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.GenType,
		&a.InitPrompt, &a.DeployKey, &a.Featured, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying app %d: %w", id, err)
	}
	return a, nil
}

// ByDeployKey fetches a deployed app by its public key.
func (s *Store) ByDeployKey(ctx context.Context, key string) (*App, error) {
	a := &App{}
	err := s.pool.QueryRow(ctx,
		`SELECT `+appCols+` FROM apps WHERE deploy_key = $1`, key,
	).Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.GenType,
		&a.InitPrompt, &a.DeployKey, &a.Featured, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying app by deploy key: %w", err)
	}
	return a, nil
}

// ListByOwner returns a user's apps, newest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID int64) ([]App, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+appCols+` FROM apps WHERE owner_id = $1 ORDER BY created_at DESC, id DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing apps: %w", err)
	}
	defer rows.Close()
	return scanApps(rows)
}

// ListFeatured returns up to limit featured apps for the public gallery.
func (s *Store) ListFeatured(ctx context.Context, limit int) ([]App, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+appCols+` FROM apps WHERE featured ORDER BY updated_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing featured apps: %w", err)
	}
	defer rows.Close()
	return scanApps(rows)
}

// ListAll returns one page of every app in the system plus the total
// count. Backs the admin listing; page is 1-based.
func (s *Store) ListAll(ctx context.Context, page, size int) ([]App, int64, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM apps`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting apps: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+appCols+` FROM apps ORDER BY created_at DESC, id DESC LIMIT $1 OFFSET $2`,
		size, (page-1)*size,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing all apps: %w", err)
	}
	defer rows.Close()

	list, err := scanApps(rows)
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// Update changes an app's name and description. Owner-scoped;
// administrators use UpdateAny.
func (s *Store) Update(ctx context.Context, id, ownerID int64, name, description string) (*App, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE apps SET name = $1, description = $2, updated_at = now()
		 WHERE id = $3 AND owner_id = $4`,
		name, description, id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating app %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, s.missingOrForbidden(ctx, id)
	}
	return s.ByID(ctx, id)
}

// UpdateAny changes any app's name and description regardless of
// owner. Admin-only; the handler enforces the role.
func (s *Store) UpdateAny(ctx context.Context, id int64, name, description string) (*App, error) {
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE apps SET name = $1, description = $2, updated_at = now()
		 WHERE id = $3`,
		name, description, id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating app %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrNotFound
	}
	return s.ByID(ctx, id)
}

// SetFeatured toggles gallery visibility. Admin-only; the handler
// enforces the role.
func (s *Store) SetFeatured(ctx context.Context, id int64, featured bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE apps SET featured = $1, updated_at = now() WHERE id = $2`,
		featured, id,
	)
	if err != nil {
		return fmt.Errorf("updating featured flag: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an app and, via FK cascade, its chat history.
// Owner-scoped; administrators use DeleteAny.
func (s *Store) Delete(ctx context.Context, id, ownerID int64) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM apps WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("deleting app %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return s.missingOrForbidden(ctx, id)
	}
	s.logger.Info("app deleted", "app_id", id)
	return nil
}

// DeleteAny removes any app regardless of owner. Admin-only; the
// handler enforces the role.
func (s *Store) DeleteAny(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM apps WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting app %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	s.logger.Info("app deleted by admin", "app_id", id)
	return nil
}

// AssignDeployKey sets a fresh random key on the app, or returns the
// existing one so repeated deploys keep a stable URL.
func (s *Store) AssignDeployKey(ctx context.Context, id int64) (string, error) {
	a, err := s.ByID(ctx, id)
	if err != nil {
		return "", err
	}
	if a.DeployKey != "" {
		return a.DeployKey, nil
	}

	for attempt := 0; attempt < deployKeyAttempts; attempt++ {
		key, err := newDeployKey()
		if err != nil {
			return "", err
		}
		_, err = s.pool.Exec(ctx,
			`UPDATE apps SET deploy_key = $1, updated_at = now() WHERE id = $2`,
			key, id,
		)
		if err == nil {
			return key, nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			continue
		}
		return "", fmt.Errorf("assigning deploy key: %w", err)
	}
	return "", fmt.Errorf("assigning deploy key: exhausted %d attempts", deployKeyAttempts)
}

// missingOrForbidden distinguishes a missing app from one owned by
// someone else after a guarded write matched zero rows.
func (s *Store) missingOrForbidden(ctx context.Context, id int64) error {
	var owner int64
	err := s.pool.QueryRow(ctx, `SELECT owner_id FROM apps WHERE id = $1`, id).Scan(&owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("looking up app %d: %w", id, err)
	}
	return ErrForbidden
}

func newDeployKey() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating deploy key: %w", err)
	}
	for i, b := range buf {
		buf[i] = deployKeyAlphabet[int(b)%len(deployKeyAlphabet)]
	}
	return string(buf), nil
}

// deriveName takes the leading words of the prompt as a display name.
func deriveName(prompt string) string {
	const maxLen = 40
	r := []rune(prompt)
	if len(r) <= maxLen {
		return prompt
	}
	return string(r[:maxLen])
}

func scanApps(rows pgx.Rows) ([]App, error) {
	apps := []App{}
	for rows.Next() {
		var a App
		if err := rows.Scan(&a.ID, &a.OwnerID, &a.Name, &a.Description, &a.GenType,
			&a.InitPrompt, &a.DeployKey, &a.Featured, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning app: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating apps: %w", err)
	}
	return apps, nil
}
