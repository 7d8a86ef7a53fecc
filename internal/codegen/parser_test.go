package codegen

import (
	"testing"

	"github.com/sitegen-ai/sitegen/internal/apps"
)

func TestParseResult(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		genType apps.GenType
		text    string
		want    Result
	}{
		{
			name:    "single html fence",
			genType: apps.GenHTML,
			text:    "Here you go:\n```html\n<html>hi</html>\n```\nEnjoy!",
			want:    Result{HTML: "<html>hi</html>"},
		},
		{
			name:    "bare html fallback",
			genType: apps.GenHTML,
			text:    "<!DOCTYPE html><html>bare</html>",
			want:    Result{HTML: "<!DOCTYPE html><html>bare</html>"},
		},
		{
			name:    "untagged fence counts as html",
			genType: apps.GenHTML,
			text:    "```\n<html>untagged</html>\n```",
			want:    Result{HTML: "<html>untagged</html>"},
		},
		{
			name:    "three blocks",
			genType: apps.GenMultiFile,
			text:    "```html\n<html/>\n```\n```css\nbody{}\n```\n```js\nconsole.log(1)\n```",
			want:    Result{HTML: "<html/>", CSS: "body{}", JS: "console.log(1)"},
		},
		{
			name:    "javascript tag",
			genType: apps.GenMultiFile,
			text:    "```javascript\nlet x = 1\n```",
			want:    Result{JS: "let x = 1"},
		},
		{
			name:    "first block of a kind wins",
			genType: apps.GenHTML,
			text:    "```html\nfirst\n```\n```html\nsecond\n```",
			want:    Result{HTML: "first"},
		},
		{
			name:    "multi file with missing blocks",
			genType: apps.GenMultiFile,
			text:    "```html\n<html/>\n```",
			want:    Result{HTML: "<html/>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := ParseResult(tt.genType, tt.text)
			if *got != tt.want {
				t.Errorf("ParseResult() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}
