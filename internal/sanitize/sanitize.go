// Package sanitize checks and cleans strings that arrive from outside the
// process. Experiment ids become directory names under the output
// directory, and free text ends up in the audit log, so both are
// restricted before use.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxExpIdxLength is the maximum allowed length for an experiment id.
const MaxExpIdxLength = 80

// MaxTextLength is the maximum length kept by Text.
const MaxTextLength = 500

var (
	// reRepeatedHyphens matches 2 or more consecutive hyphens.
	reRepeatedHyphens = regexp.MustCompile(`-{2,}`)

	// reRepeatedUnderscores matches 2 or more consecutive underscores.
	reRepeatedUnderscores = regexp.MustCompile(`_{2,}`)
)

func idRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r == '-' || r == '_' || r == '.'
}

// ValidateExpIdx reports whether id is usable as an experiment id: non-empty,
// at most MaxExpIdxLength characters from [a-zA-Z0-9._-], and not starting
// with a dot.
func ValidateExpIdx(id string) error {
	if id == "" {
		return fmt.Errorf("expidx is required")
	}
	if len(id) > MaxExpIdxLength {
		return fmt.Errorf("expidx longer than %d characters", MaxExpIdxLength)
	}
	if id[0] == '.' {
		return fmt.Errorf("expidx %q must not start with a dot", id)
	}
	for _, r := range id {
		if !idRune(r) {
			return fmt.Errorf("expidx %q contains %q (allowed: letters, digits, '.', '-', '_')", id, r)
		}
	}
	return nil
}

// ExpIdx turns input into a valid experiment id, dropping disallowed
// characters and leading dots, collapsing repeated hyphens and underscores
// and truncating to MaxExpIdxLength. The result may be empty.
func ExpIdx(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if idRune(r) {
			b.WriteRune(r)
		}
	}
	s := strings.TrimLeft(b.String(), ".")
	s = reRepeatedHyphens.ReplaceAllString(s, "-")
	s = reRepeatedUnderscores.ReplaceAllString(s, "_")
	if len(s) > MaxExpIdxLength {
		s = s[:MaxExpIdxLength]
	}
	return s
}

// Text strips control characters (newlines and tabs included), trims
// whitespace and truncates to MaxTextLength.
func Text(input string) string {
	if input == "" {
		return ""
	}
	s := strings.TrimSpace(stripControlChars(input))
	if len(s) > MaxTextLength {
		s = s[:MaxTextLength] + "..."
	}
	return s
}

// stripControlChars removes ASCII control characters and DEL.
func stripControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
