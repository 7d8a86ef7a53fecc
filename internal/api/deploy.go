package api

import (
	"fmt"
	"os"
	"path/filepath"
)

// publishDir replaces {deployRoot}/{key} with a copy of src. The old
// deployment is swapped out atomically enough for static serving: the
// copy lands in a sibling temp dir first, then renames into place.
func publishDir(src, deployRoot, key string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("artifact directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("artifact path %s is not a directory", src)
	}

	if err := os.MkdirAll(deployRoot, 0o750); err != nil {
		return fmt.Errorf("creating deploy root: %w", err)
	}

	staging, err := os.MkdirTemp(deployRoot, "."+key+"-")
	if err != nil {
		return fmt.Errorf("creating staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := os.CopyFS(staging, os.DirFS(src)); err != nil {
		return fmt.Errorf("copying artifact: %w", err)
	}

	dest := filepath.Join(deployRoot, key)
	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("removing previous deployment: %w", err)
	}
	if err := os.Rename(staging, dest); err != nil {
		return fmt.Errorf("activating deployment: %w", err)
	}
	return nil
}
