// Package history persists per-app chat turns and serves them back in
// the two shapes the rest of the system needs: a bounded recent window
// for rebuilding conversation memory, and a cursor page for the API.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sitegen-ai/sitegen/internal/log"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

// Valid reports whether r is a role this system writes. Rows with other
// roles may exist after manual edits; readers skip them.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAI
}

// Turn is one persisted chat message.
type Turn struct {
	ID        int64     `json:"id"`
	AppID     int64     `json:"appId"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Page size bounds for List.
const (
	DefaultPageSize = 10
	MaxPageSize     = 50
)

// Cursor addresses a position when paging backwards through history.
// Pages order by (created_at, id) descending; carrying the id breaks
// timestamp ties, so burst inserts landing on the same instant are
// never skipped between pages. The zero Cursor means newest.
type Cursor struct {
	CreatedAt time.Time
	ID        int64
}

// IsZero reports whether c is the start-from-newest cursor.
func (c Cursor) IsZero() bool {
	return c.CreatedAt.IsZero() && c.ID == 0
}

// querier is the common interface satisfied by *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const turnCols = `id, app_id, role, content, created_at`

// Store reads and writes chat turns. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a history Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Append records a turn and returns it with ID and timestamp filled in.
func (s *Store) Append(ctx context.Context, appID int64, role Role, content string) (*Turn, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}
	if content == "" {
		return nil, fmt.Errorf("content is required")
	}

	t := &Turn{AppID: appID, Role: role}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO chat_history (app_id, role, content)
		 VALUES ($1, $2, $3)
		 RETURNING id, content, created_at`,
		appID, role, content,
	).Scan(&t.ID, &t.Content, &t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting chat turn: %w", err)
	}
	return t, nil
}

// Recent returns up to limit turns for an app in chronological order.
// With skipNewest, the single most recent turn is excluded; memory
// rebuilding uses this so the message being answered is not loaded
// twice.
func (s *Store) Recent(ctx context.Context, appID int64, limit int, skipNewest bool) ([]Turn, error) {
	if limit <= 0 {
		return []Turn{}, nil
	}

	offset := 0
	if skipNewest {
		offset = 1
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+turnCols+`
		 FROM chat_history
		 WHERE app_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2 OFFSET $3`,
		appID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent turns: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}

	// Newest-first from the query; reverse to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// List returns one page of turns, newest first. A zero before means
// start from the newest turn; otherwise only turns strictly before the
// cursor position are returned. The second result is the cursor for
// the next page, zero when this page is the last.
func (s *Store) List(ctx context.Context, appID int64, before Cursor, pageSize int) ([]Turn, Cursor, error) {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	var (
		rows pgx.Rows
		err  error
	)
	if before.IsZero() {
		rows, err = s.pool.Query(ctx,
			`SELECT `+turnCols+`
			 FROM chat_history
			 WHERE app_id = $1
			 ORDER BY created_at DESC, id DESC
			 LIMIT $2`,
			appID, pageSize+1,
		)
	} else {
		rows, err = s.pool.Query(ctx,
			`SELECT `+turnCols+`
			 FROM chat_history
			 WHERE app_id = $1 AND (created_at, id) < ($2, $3)
			 ORDER BY created_at DESC, id DESC
			 LIMIT $4`,
			appID, before.CreatedAt, before.ID, pageSize+1,
		)
	}
	if err != nil {
		return nil, Cursor{}, fmt.Errorf("querying history page: %w", err)
	}
	defer rows.Close()

	turns, err := scanTurns(rows)
	if err != nil {
		return nil, Cursor{}, err
	}

	var next Cursor
	if len(turns) > pageSize {
		turns = turns[:pageSize]
		last := turns[len(turns)-1]
		next = Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return turns, next, nil
}

func scanTurns(rows pgx.Rows) ([]Turn, error) {
	turns := []Turn{}
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.AppID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chat turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chat turns: %w", err)
	}
	return turns, nil
}
