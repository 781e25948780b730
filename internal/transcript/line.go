// Package transcript holds the timestamped-line transcript model, the
// sanitizer that cleans AI enhancement output, and the merger that reconciles
// the transcription sources into one authoritative transcript.
//
// The canonical on-disk transcript format is one line per caption:
//
//	HH:MM:SS <text>
//
// Everything downstream (script generation, review, synthesis) consumes this
// form or the plain text derived from it.
package transcript

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Line is one timestamped caption.
type Line struct {
	Seconds int
	Text    string
}

// Segment pairs a start offset with text, the shape external collaborators
// exchange.
type Segment struct {
	Start float64
	End   float64
	Text  string
}

var lineRe = regexp.MustCompile(`^(\d{2}):(\d{2}):(\d{2})\s+(.+)$`)

// FormatTimestamp renders seconds as HH:MM:SS.
func FormatTimestamp(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds%3600)/60, seconds%60)
}

// ParseLine parses one "HH:MM:SS text" line. Returns false when the line does
// not carry a leading timestamp.
func ParseLine(raw string) (Line, bool) {
	match := lineRe.FindStringSubmatch(strings.TrimSpace(raw))
	if match == nil {
		return Line{}, false
	}
	hours, _ := strconv.Atoi(match[1])
	minutes, _ := strconv.Atoi(match[2])
	seconds, _ := strconv.Atoi(match[3])
	return Line{
		Seconds: hours*3600 + minutes*60 + seconds,
		Text:    strings.TrimSpace(match[4]),
	}, true
}

// FromSegments converts collaborator segments into timestamped lines.
func FromSegments(segments []Segment) []Line {
	lines := make([]Line, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start := int(seg.Start)
		if start < 0 {
			start = 0
		}
		lines = append(lines, Line{Seconds: start, Text: text})
	}
	return lines
}

// SortLines orders lines by ascending timestamp, preserving the relative
// order of lines sharing a timestamp.
func SortLines(lines []Line) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].Seconds < lines[j].Seconds
	})
}

// TimedText renders lines in the canonical "HH:MM:SS text" form.
func TimedText(lines []Line) string {
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(FormatTimestamp(line.Seconds))
		b.WriteByte(' ')
		b.WriteString(line.Text)
	}
	return b.String()
}

// PlainText renders line texts joined with spaces, timestamps dropped.
func PlainText(lines []Line) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		parts = append(parts, line.Text)
	}
	return strings.Join(parts, " ")
}

// ToSegments converts lines back into collaborator segments.
func ToSegments(lines []Line) []Segment {
	segments := make([]Segment, 0, len(lines))
	for _, line := range lines {
		segments = append(segments, Segment{Start: float64(line.Seconds), Text: line.Text})
	}
	return segments
}

// ParseTimedText parses a canonical transcript document, skipping lines
// without a leading timestamp.
func ParseTimedText(text string) []Line {
	var lines []Line
	for _, raw := range strings.Split(text, "\n") {
		if line, ok := ParseLine(raw); ok {
			lines = append(lines, line)
		}
	}
	return lines
}

// WordCount counts whitespace-separated tokens in the plain text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}
