// Package user manages accounts and login sessions. Passwords are
// stored as bcrypt hashes; sessions are opaque random tokens with a
// server-side expiry.
package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitegen-ai/sitegen/internal/log"
)

// SessionTTL is how long a login token stays valid.
const SessionTTL = 7 * 24 * time.Hour

// Role controls what an account may do.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User is an account. The password hash never leaves this package.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store reads and writes accounts and sessions. Safe for concurrent use.
type Store struct {
	pool   *pgxpool.Pool
	logger log.Logger
}

// NewStore creates a user Store.
func NewStore(pool *pgxpool.Pool, logger log.Logger) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{pool: pool, logger: logger}, nil
}

// Register creates an account. The first registered account becomes an
// admin; later ones are regular users.
func (s *Store) Register(ctx context.Context, username, password string) (*User, error) {
	if !validUsername(username) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidUsername, username)
	}
	if len(password) < MinPasswordLength {
		return nil, fmt.Errorf("%w: minimum %d characters", ErrWeakPassword, MinPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &User{Username: username}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO users (username, password_hash, role)
		 SELECT $1, $2, CASE WHEN EXISTS (SELECT 1 FROM users) THEN 'user' ELSE 'admin' END
		 RETURNING id, role, created_at`,
		username, string(hash),
	).Scan(&u.ID, &u.Role, &u.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("%w: %q", ErrUsernameTaken, username)
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	s.logger.Info("user registered", "user_id", u.ID, "username", username)
	return u, nil
}

// Login verifies credentials and opens a session, returning the user
// and the session token.
func (s *Store) Login(ctx context.Context, username, password string) (*User, string, error) {
	u := &User{Username: username}
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT id, role, created_at, password_hash FROM users WHERE username = $1`,
		username,
	).Scan(&u.ID, &u.Role, &u.CreatedAt, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		// Burn comparable time so unknown usernames are not faster to
		// probe than wrong passwords.
		_ = bcrypt.CompareHashAndPassword([]byte("$2a$10$000000000000000000000uGyUWVnNQzxyoxKkO2uCzCwFqCdYfYK"), []byte(password))
		return nil, "", ErrInvalidCredentials
	}
	if err != nil {
		return nil, "", fmt.Errorf("querying user: %w", err)
	}

	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}

	token := uuid.NewString()
	if _, err := s.pool.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id, expires_at) VALUES ($1, $2, $3)`,
		token, u.ID, time.Now().Add(SessionTTL),
	); err != nil {
		return nil, "", fmt.Errorf("creating session: %w", err)
	}

	s.logger.Info("user logged in", "user_id", u.ID)
	return u, token, nil
}

// Logout removes the session. Unknown tokens are a no-op.
func (s *Store) Logout(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM auth_sessions WHERE token = $1`, token); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// BySession resolves a token to its user. Expired sessions return
// ErrSessionInvalid.
func (s *Store) BySession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrSessionInvalid
	}

	u := &User{}
	err := s.pool.QueryRow(ctx,
		`SELECT u.id, u.username, u.role, u.created_at
		 FROM auth_sessions s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.token = $1 AND s.expires_at > now()`,
		token,
	).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionInvalid
	}
	if err != nil {
		return nil, fmt.Errorf("resolving session: %w", err)
	}
	return u, nil
}

// ByID fetches a user by primary key.
func (s *Store) ByID(ctx context.Context, id int64) (*User, error) {
	u := &User{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, role, created_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user %d: %w", id, err)
	}
	return u, nil
}

// PurgeExpired deletes expired sessions and returns the count removed.
// Intended for a periodic background sweep.
func (s *Store) PurgeExpired(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM auth_sessions WHERE expires_at <= now()`)
	if err != nil {
		return 0, fmt.Errorf("purging sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
