package user

import "errors"

// Account constraints.
const (
	MinUsernameLength = 4
	MaxUsernameLength = 32
	MinPasswordLength = 8
)

// Sentinel errors for account operations. Check with errors.Is().
var (
	// ErrNotFound indicates the user does not exist.
	ErrNotFound = errors.New("user not found")

	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")

	// ErrInvalidCredentials covers both unknown username and wrong
	// password; callers must not distinguish the two.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidUsername indicates the username fails format rules.
	ErrInvalidUsername = errors.New("invalid username")

	// ErrWeakPassword indicates the password is too short.
	ErrWeakPassword = errors.New("password too short")

	// ErrSessionInvalid indicates the token is unknown or expired.
	ErrSessionInvalid = errors.New("session invalid or expired")
)

// validUsername reports whether s is a well-formed username: starts
// with a letter, then letters, digits, underscores or hyphens.
func validUsername(s string) bool {
	if len(s) < MinUsernameLength || len(s) > MaxUsernameLength {
		return false
	}
	first := s[0]
	if (first < 'a' || first > 'z') && (first < 'A' || first > 'Z') {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '_' || c == '-':
		default:
			return false
		}
	}
	return true
}
