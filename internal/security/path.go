package security

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// PathValidator confines file access to a single root directory. It is
// used to sandbox generated-file writes and project-mode tool access
// inside an app's workspace.
type PathValidator struct {
	root string
}

// NewPathValidator resolves root to an absolute path and returns a
// validator confined to it.
func NewPathValidator(root string) (*PathValidator, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	return &PathValidator{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute root directory.
func (v *PathValidator) Root() string { return v.root }

// Resolve joins rel onto the root and verifies the result stays inside
// it, following symlinks. Returns the safe absolute path.
func (v *PathValidator) Resolve(rel string) (string, error) {
	abs := filepath.Clean(filepath.Join(v.root, rel))
	if !v.inside(abs) {
		return "", fmt.Errorf("access denied: %q escapes workspace", rel)
	}

	// A symlink inside the root may still point outside it.
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			// Path does not exist yet; fine for new files.
			return abs, nil
		}
		return "", fmt.Errorf("resolve symlinks: %w", err)
	}
	if !v.inside(real) {
		return "", fmt.Errorf("access denied: %q resolves outside workspace", rel)
	}
	return real, nil
}

func (v *PathValidator) inside(abs string) bool {
	if abs == v.root {
		return true
	}
	return strings.HasPrefix(abs, v.root+string(filepath.Separator))
}

var deployKeyRe = regexp.MustCompile(`^[a-z0-9]{6}$`)

// ValidDeployKey reports whether s is a well-formed deploy key. Keys
// appear in URLs, so anything else is rejected before hitting storage.
func ValidDeployKey(s string) bool {
	return deployKeyRe.MatchString(s)
}
