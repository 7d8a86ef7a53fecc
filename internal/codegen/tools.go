package codegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/sitegen-ai/sitegen/internal/security"
)

// maxToolFileSize bounds a single generated file read or write.
const maxToolFileSize = 1 << 20

type workspaceKey struct{}

// withWorkspace binds the project workspace directory into the context
// the tool closures run under. Tools are registered once per process
// but serve many apps; the workspace travels with the request.
func withWorkspace(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, workspaceKey{}, dir)
}

func workspaceFrom(ctx context.Context) (string, error) {
	dir, ok := ctx.Value(workspaceKey{}).(string)
	if !ok || dir == "" {
		return "", fmt.Errorf("no project workspace bound to this request")
	}
	return dir, nil
}

// resolveInWorkspace confines a tool-supplied path to the request's
// workspace.
func resolveInWorkspace(ctx context.Context, rel string) (string, error) {
	dir, err := workspaceFrom(ctx)
	if err != nil {
		return "", err
	}
	v, err := security.NewPathValidator(dir)
	if err != nil {
		return "", err
	}
	return v.Resolve(rel)
}

// RegisterProjectTools defines the file tools project-mode generation
// may call. Paths are relative to the request workspace and validated
// against traversal.
func RegisterProjectTools(g *genkit.Genkit) []ai.Tool {
	writeFile := genkit.DefineTool(
		g, "writeFile", "Create or overwrite a project file with the given content",
		func(ctx *ai.ToolContext, input struct {
			Path    string `json:"path" jsonschema_description:"File path relative to the project root"`
			Content string `json:"content" jsonschema_description:"Complete file content"`
		},
		) (string, error) {
			if len(input.Content) > maxToolFileSize {
				return "", fmt.Errorf("content exceeds %d bytes", maxToolFileSize)
			}
			safePath, err := resolveInWorkspace(ctx, input.Path)
			if err != nil {
				return "", err
			}
			if err := os.MkdirAll(filepath.Dir(safePath), 0o750); err != nil {
				return "", fmt.Errorf("creating directory: %w", err)
			}
			if err := os.WriteFile(safePath, []byte(input.Content), 0o640); err != nil {
				return "", fmt.Errorf("writing file: %w", err)
			}
			return fmt.Sprintf("wrote %s (%d bytes)", input.Path, len(input.Content)), nil
		},
	)

	readFile := genkit.DefineTool(
		g, "readFile", "Read a project file",
		func(ctx *ai.ToolContext, input struct {
			Path string `json:"path" jsonschema_description:"File path relative to the project root"`
		},
		) (string, error) {
			safePath, err := resolveInWorkspace(ctx, input.Path)
			if err != nil {
				return "", err
			}
			info, err := os.Stat(safePath)
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			if info.Size() > maxToolFileSize {
				return "", fmt.Errorf("file exceeds %d bytes", maxToolFileSize)
			}
			content, err := os.ReadFile(safePath) // #nosec G304 -- confined to workspace above
			if err != nil {
				return "", fmt.Errorf("reading file: %w", err)
			}
			return string(content), nil
		},
	)

	listFiles := genkit.DefineTool(
		g, "listFiles", "List files and directories under a project path",
		func(ctx *ai.ToolContext, input struct {
			Path string `json:"path" jsonschema_description:"Directory path relative to the project root, empty for the root"`
		},
		) (string, error) {
			safePath, err := resolveInWorkspace(ctx, input.Path)
			if err != nil {
				return "", err
			}
			entries, err := os.ReadDir(safePath)
			if err != nil {
				return "", fmt.Errorf("listing directory: %w", err)
			}
			var lines []string
			for _, e := range entries {
				if e.IsDir() {
					lines = append(lines, e.Name()+"/")
					continue
				}
				lines = append(lines, e.Name())
			}
			if len(lines) == 0 {
				return "(empty)", nil
			}
			return strings.Join(lines, "\n"), nil
		},
	)

	deleteFile := genkit.DefineTool(
		g, "deleteFile", "Delete a project file",
		func(ctx *ai.ToolContext, input struct {
			Path string `json:"path" jsonschema_description:"File path relative to the project root"`
		},
		) (string, error) {
			safePath, err := resolveInWorkspace(ctx, input.Path)
			if err != nil {
				return "", err
			}
			if err := os.Remove(safePath); err != nil {
				return "", fmt.Errorf("deleting file: %w", err)
			}
			return fmt.Sprintf("deleted %s", input.Path), nil
		},
	)

	return []ai.Tool{writeFile, readFile, listFiles, deleteFile}
}
