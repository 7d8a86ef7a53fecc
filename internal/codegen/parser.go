package codegen

import (
	"regexp"
	"strings"

	"github.com/sitegen-ai/sitegen/internal/apps"
)

var fenceRe = regexp.MustCompile("(?s)```([a-zA-Z]*)\\n(.*?)```")

// ParseResult extracts generated code from the accumulated model
// output. Models wrap code in fenced blocks; the language tag selects
// the slot. Single-file mode falls back to the whole response when no
// fence is present, since some models emit bare HTML.
func ParseResult(genType apps.GenType, text string) *Result {
	res := &Result{}

	for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
		lang := strings.ToLower(m[1])
		body := strings.TrimSpace(m[2])
		switch lang {
		case "html", "":
			if res.HTML == "" {
				res.HTML = body
			}
		case "css":
			if res.CSS == "" {
				res.CSS = body
			}
		case "js", "javascript":
			if res.JS == "" {
				res.JS = body
			}
		}
	}

	if genType == apps.GenHTML && res.HTML == "" {
		res.HTML = strings.TrimSpace(text)
	}
	return res
}
