package security

import (
	"regexp"
	"strings"
	"unicode"
)

// PromptCheck reports the outcome of injection screening.
type PromptCheck struct {
	Safe     bool
	Patterns []string // matched patterns, empty when safe
}

// PromptValidator screens chat messages for common prompt injection
// patterns before they are sent to the model.
//
// No filter is complete; this is a first line of defense. Homoglyph
// substitution in particular is not detected.
type PromptValidator struct {
	patterns []*regexp.Regexp
}

// NewPromptValidator compiles the default pattern set.
func NewPromptValidator() *PromptValidator {
	patterns := []string{
		// system prompt override
		`(?i)ignore\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?|rules?)`,
		`(?i)disregard\s+(all\s+)?(previous|above|prior)\s+(instructions?|prompts?)`,
		`(?i)forget\s+(all\s+)?(previous|above|prior)\s+(instructions?|context)`,

		// role reassignment
		`(?i)^(pretend|act|behave|imagine)\s+(you\s+are|to\s+be|as\s+if|like)`,
		`(?i)^you\s+are\s+now\s+a`,
		`(?i)^from\s+now\s+on,?\s+you\s+(are|will|must)`,

		// instruction injection
		`(?i)^new\s+(instruction|task|rule)\s*:`,
		`(?i)^admin\s*(mode|override|command)\s*:`,

		// context escape via fake delimiters
		`(?i)</?(system|instruction|prompt)>`,
		`(?i)---+\s*(system|new\s+instruction)`,

		// jailbreak phrasing
		`(?i)do\s+anything\s+now`,
		`(?i)jailbreak`,
		`(?i)bypass\s+(safety|filter|restrictions?)`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return &PromptValidator{patterns: compiled}
}

// Validate screens input and returns every matched pattern.
func (v *PromptValidator) Validate(input string) PromptCheck {
	normalized := normalizePrompt(input)

	var detected []string
	for _, re := range v.patterns {
		if re.MatchString(normalized) {
			detected = append(detected, re.String())
		}
	}
	return PromptCheck{Safe: len(detected) == 0, Patterns: detected}
}

// IsSafe reports whether no injection pattern matched.
func (v *PromptValidator) IsSafe(input string) bool {
	return v.Validate(input).Safe
}

// normalizePrompt strips zero-width and combining characters and
// collapses whitespace so spacing tricks cannot dodge the patterns.
func normalizePrompt(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) || unicode.Is(unicode.Mn, r) {
			continue
		}
		if unicode.IsSpace(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
