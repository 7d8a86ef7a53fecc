package codegen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/sitegen-ai/sitegen/internal/apps"
	"github.com/sitegen-ai/sitegen/internal/log"
)

// DefaultContextBudget caps how much prior code an edit prompt carries.
const DefaultContextBudget = 8000

const truncationMarker = "\n... (truncated)"

// contextFiles lists which artifact files feed the edit context for
// each generation type. Project mode injects only the key entry files;
// the model reads the rest through its tools.
var contextFiles = map[apps.GenType][]string{
	apps.GenHTML:      {"index.html"},
	apps.GenMultiFile: {"index.html", "style.css", "script.js"},
	apps.GenProject:   {"src/App.vue", "src/main.js", "src/router/index.js"},
}

// Injector folds previously generated code into edit requests so the
// model can change existing output instead of regenerating from
// scratch. Injection is best-effort: any read failure degrades to the
// original message.
type Injector struct {
	root   string // artifact root, same layout as the saver
	budget int
	logger log.Logger
}

// NewInjector creates an Injector over the artifact root. budget <= 0
// selects DefaultContextBudget.
func NewInjector(root string, budget int, logger log.Logger) *Injector {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Injector{root: root, budget: budget, logger: logger}
}

// Inject returns the message to send to the model. Non-edit requests
// pass through unchanged. Edit requests get the current artifact
// content, labeled by filename and truncated to the budget, wrapped
// into an edit instruction together with the user's message. With no
// artifact on disk the original message is returned verbatim.
func (in *Injector) Inject(appID int64, genType apps.GenType, userMessage string, editMode bool) string {
	if !editMode {
		return userMessage
	}

	dir := ArtifactDir(in.root, genType, appID)
	code := in.readContext(dir, genType)
	if code == "" {
		in.logger.Debug("no prior artifact for edit, sending message unchanged",
			"app_id", appID, "gen_type", genType)
		return userMessage
	}

	return fmt.Sprintf(`You previously generated the following code:

%s

The user now asks for this change:
%s

Modify only what the request touches and preserve everything else.
Output the complete updated result, not a diff.`, code, userMessage)
}

// readContext concatenates the type-appropriate files under dir,
// labeled by filename, clamped to the budget. Missing files are
// skipped; an unreadable directory yields "".
func (in *Injector) readContext(dir string, genType apps.GenType) string {
	var b strings.Builder
	for _, name := range contextFiles[genType] {
		content, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
		if err != nil {
			if !os.IsNotExist(err) {
				in.logger.Debug("reading edit context file", "file", name, "error", err)
			}
			continue
		}
		fmt.Fprintf(&b, "=== %s ===\n%s\n\n", name, content)

		if b.Len() > in.budget {
			break
		}
	}

	s := b.String()
	if len(s) > in.budget {
		// Back the cut off to a rune boundary so a multi-byte character
		// straddling the budget never yields invalid UTF-8.
		cut := in.budget
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut] + truncationMarker
	}
	return strings.TrimRight(s, "\n")
}
