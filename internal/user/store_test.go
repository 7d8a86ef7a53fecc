package user

import (
	"context"
	"errors"
	"testing"

	"github.com/sitegen-ai/sitegen/internal/log"
	"github.com/sitegen-ai/sitegen/internal/testutil"
)

func TestValidUsername(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		want bool
	}{
		{"alice", true},
		{"a_b-c42", true},
		{"ab", false},     // too short
		{"9lives", false}, // must start with a letter
		{"has space", false},
		{"semi;colon", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := validUsername(tt.name); got != tt.want {
				t.Errorf("validUsername(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestStore_RegisterAndLogin(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}

	first, err := store.Register(ctx, "firstuser", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if first.Role != RoleAdmin {
		t.Errorf("first account role = %s, want admin", first.Role)
	}

	second, err := store.Register(ctx, "seconduser", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register(second) = %v", err)
	}
	if second.Role != RoleUser {
		t.Errorf("second account role = %s, want user", second.Role)
	}

	t.Run("duplicate username", func(t *testing.T) {
		_, err := store.Register(ctx, "firstuser", "another-pass")
		if !errors.Is(err, ErrUsernameTaken) {
			t.Errorf("Register(dup) = %v, want ErrUsernameTaken", err)
		}
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := store.Register(ctx, "thirduser", "short")
		if !errors.Is(err, ErrWeakPassword) {
			t.Errorf("Register(short pw) = %v, want ErrWeakPassword", err)
		}
	})

	t.Run("login round trip", func(t *testing.T) {
		u, token, err := store.Login(ctx, "firstuser", "s3cret-pass")
		if err != nil {
			t.Fatalf("Login() = %v", err)
		}
		if u.ID != first.ID || token == "" {
			t.Fatalf("Login() = user %d token %q", u.ID, token)
		}

		got, err := store.BySession(ctx, token)
		if err != nil {
			t.Fatalf("BySession() = %v", err)
		}
		if got.ID != first.ID || got.Username != "firstuser" {
			t.Errorf("BySession() = %+v, want user %d", got, first.ID)
		}

		if err := store.Logout(ctx, token); err != nil {
			t.Fatalf("Logout() = %v", err)
		}
		if _, err := store.BySession(ctx, token); !errors.Is(err, ErrSessionInvalid) {
			t.Errorf("BySession after logout = %v, want ErrSessionInvalid", err)
		}
	})

	t.Run("wrong password", func(t *testing.T) {
		_, _, err := store.Login(ctx, "firstuser", "wrong-pass")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(wrong pw) = %v, want ErrInvalidCredentials", err)
		}
	})

	t.Run("unknown username", func(t *testing.T) {
		_, _, err := store.Login(ctx, "nobodyhere", "whatever1")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(unknown) = %v, want ErrInvalidCredentials", err)
		}
	})
}

func TestStore_SessionExpiry(t *testing.T) {
	tdb := testutil.SetupTestDB(t)
	ctx := context.Background()

	store, err := NewStore(tdb.Pool, log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() = %v", err)
	}

	u, err := store.Register(ctx, "expiring", "s3cret-pass")
	if err != nil {
		t.Fatalf("Register() = %v", err)
	}

	// Insert an already-expired session directly.
	if _, err := tdb.Pool.Exec(ctx,
		`INSERT INTO auth_sessions (token, user_id, expires_at)
		 VALUES ('stale-token', $1, now() - interval '1 hour')`, u.ID); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	if _, err := store.BySession(ctx, "stale-token"); !errors.Is(err, ErrSessionInvalid) {
		t.Errorf("BySession(expired) = %v, want ErrSessionInvalid", err)
	}

	n, err := store.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired() = %v", err)
	}
	if n != 1 {
		t.Errorf("PurgeExpired() = %d, want 1", n)
	}
}
