// Package language normalizes the language tags that flow through job
// records and presents them for human output. Tags are stored canonical
// (BCP 47, as x/text renders them) and displayed with their English name.
package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Normalize canonicalizes a user-supplied language tag. Returns the input
// unchanged with ok=false when the tag does not parse.
func Normalize(tag string) (string, bool) {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return "", false
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return trimmed, false
	}
	return parsed.String(), true
}

// DisplayName renders a tag for human output, "hi" becoming "Hindi (hi)".
// Unparseable tags come back as entered.
func DisplayName(tag string) string {
	trimmed := strings.TrimSpace(tag)
	if trimmed == "" {
		return ""
	}
	parsed, err := language.Parse(trimmed)
	if err != nil {
		return trimmed
	}
	name := display.English.Languages().Name(parsed)
	if name == "" || strings.EqualFold(name, trimmed) {
		return trimmed
	}
	return name + " (" + parsed.String() + ")"
}
