package codegen

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// Result is the parsed output of one generation. Project mode produces
// files through tool calls instead, leaving the result empty.
type Result struct {
	HTML string
	CSS  string
	JS   string
}

// ArtifactDir returns the deterministic artifact directory for an
// app and generation type: {root}/{type}_{appID}.
func ArtifactDir(root string, genType apps.GenType, appID int64) string {
	return filepath.Join(root, fmt.Sprintf("%s_%d", genType, appID))
}

// Saver writes generation results to their artifact directory. Each
// save overwrites the previous artifact; there is no versioning.
type Saver struct {
	root   string
	logger log.Logger
}

// NewSaver creates a Saver rooted at dir.
func NewSaver(root string, logger log.Logger) *Saver {
	if logger == nil {
		logger = log.NewNop()
	}
	return &Saver{root: root, logger: logger}
}

// Root returns the artifact root directory.
func (s *Saver) Root() string { return s.root }

// Save persists a result and returns the artifact directory. Single
// file mode writes index.html; multi-file writes index.html, style.css
// and script.js. Project mode is a pass-through: tool calls have
// already written the files, so Save only guarantees the directory
// exists. A file lock serializes concurrent saves to the same
// directory; last writer wins.
func (s *Saver) Save(genType apps.GenType, appID int64, res *Result) (string, error) {
	dir := ArtifactDir(s.root, genType, appID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating artifact dir: %w", err)
	}

	if genType == apps.GenProject {
		return dir, nil
	}
	if res == nil {
		return "", fmt.Errorf("nil result for %s generation", genType)
	}

	lock := flock.New(filepath.Join(dir, ".save.lock"))
	if err := lock.Lock(); err != nil {
		return "", fmt.Errorf("locking artifact dir: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("unlocking artifact dir", "dir", dir, "error", err)
		}
	}()

	files := map[string]string{"index.html": res.HTML}
	if genType == apps.GenMultiFile {
		files["style.css"] = res.CSS
		files["script.js"] = res.JS
	}

	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o640); err != nil {
			return "", fmt.Errorf("writing %s: %w", name, err)
		}
	}

	s.logger.Info("artifact saved", "dir", dir, "gen_type", genType, "files", len(files))
	return dir, nil
}

// Workspace returns the artifact directory for project-mode tool
// access, creating it if needed.
func (s *Saver) Workspace(genType apps.GenType, appID int64) (string, error) {
	dir := ArtifactDir(s.root, genType, appID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating workspace: %w", err)
	}
	return dir, nil
}
