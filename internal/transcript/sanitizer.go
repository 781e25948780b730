package transcript

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
)

// Built-in boilerplate the enhancement models keep prepending no matter how
// firmly the prompt forbids it. Matched case-insensitively against the whole
// cleaned line; lines containing one of these are dropped.
var builtinDenyPhrases = []string{
	"here's the enhanced transcript",
	"here is the enhanced transcript",
	"here's the merged transcript",
	"here is the merged transcript",
	"here's the translation",
	"here is the translation",
	"since no visual analysis was provided",
	"no visual analysis was provided",
	"enhanced transcript:",
	"merged transcript:",
	"translation:",
	"यहाँ संशोधित प्रतिलेख है",
	"यहाँ अनुवाद है",
	"कोई दृश्य विश्लेषण प्रदान नहीं किया गया",
}

// Sanitizer cleans raw enhancement output into canonical timestamped lines.
// All rules are pure string transforms; sanitizing its own output yields the
// same result.
type Sanitizer struct {
	scriptName  string
	script      *unicode.RangeTable
	denyPhrases []string
}

// NewSanitizer builds a sanitizer for the given Unicode script name
// (e.g. "Devanagari"). extraDeny extends the built-in boilerplate deny-list.
func NewSanitizer(scriptName string, extraDeny []string) (*Sanitizer, error) {
	table, ok := unicode.Scripts[scriptName]
	if !ok {
		return nil, fmt.Errorf("unknown Unicode script %q", scriptName)
	}
	deny := make([]string, 0, len(builtinDenyPhrases)+len(extraDeny))
	for _, phrase := range builtinDenyPhrases {
		deny = append(deny, strings.ToLower(phrase))
	}
	for _, phrase := range extraDeny {
		phrase = strings.ToLower(strings.TrimSpace(phrase))
		if phrase != "" {
			deny = append(deny, phrase)
		}
	}
	return &Sanitizer{scriptName: scriptName, script: table, denyPhrases: deny}, nil
}

// ScriptName reports the Unicode script this sanitizer keeps.
func (s *Sanitizer) ScriptName() string { return s.scriptName }

// Sanitize cleans raw model output into sorted timestamped lines. Lines
// without a leading HH:MM:SS timestamp are discarded, as are lines that clean
// down to boilerplate or fewer than two characters.
func (s *Sanitizer) Sanitize(raw string) []Line {
	var lines []Line
	for _, rawLine := range strings.Split(raw, "\n") {
		line, ok := ParseLine(stripMarkdown(rawLine))
		if !ok {
			continue
		}
		text := s.cleanText(line.Text)
		if len([]rune(text)) < 2 || s.denied(text) {
			continue
		}
		lines = append(lines, Line{Seconds: line.Seconds, Text: text})
	}
	SortLines(lines)
	return lines
}

// InTargetScript reports whether the dominant script of text already matches
// the sanitizer's target, in which case no translation pass is needed.
func (s *Sanitizer) InTargetScript(text string) bool {
	detected := whatlanggo.DetectScript(text)
	if detected == nil {
		return false
	}
	return detected == s.script
}

func (s *Sanitizer) cleanText(text string) string {
	text = stripEmbeddedTimestamps(text)
	text = s.stripForeignRunes(text)
	text = collapseSpaces(text)
	return strings.TrimSpace(text)
}

func (s *Sanitizer) denied(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range s.denyPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// stripForeignRunes removes characters outside the target script, keeping
// digits, punctuation, colons, and whitespace. Isolated leftovers of other
// scripts (a stray "okay" in a Devanagari line) vanish along with their
// letters; collapseSpaces then tidies the gaps.
func (s *Sanitizer) stripForeignRunes(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case unicode.Is(s.script, r):
			b.WriteRune(r)
		case unicode.IsDigit(r) || unicode.IsPunct(r) || unicode.IsSpace(r) || r == ':':
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	embeddedTimestampRe = regexp.MustCompile(`\b\d{1,2}:\d{2}(?::\d{2})?\b`)
	markdownEmphasisRe  = regexp.MustCompile("\\*{1,3}|_{1,3}|`+")
	bracketNoteRe       = regexp.MustCompile(`\[[^\]\n]*\]|\([^)\n]*\)`)
)

func stripEmbeddedTimestamps(text string) string {
	return embeddedTimestampRe.ReplaceAllString(text, "")
}

// stripMarkdown removes emphasis markers and bracketed or parenthetical
// stage notes before the line format check, so "**00:00:05** नमस्ते (smiles)"
// survives as a valid timestamped line.
func stripMarkdown(text string) string {
	text = markdownEmphasisRe.ReplaceAllString(text, "")
	return bracketNoteRe.ReplaceAllString(text, "")
}

func collapseSpaces(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
