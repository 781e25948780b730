// Package scriptgen turns the authoritative transcript into a narration
// script and computes the speech speed needed to fit the source video.
package scriptgen

import (
	"context"
	"fmt"
	"strings"

	"redub/internal/services"
)

// Completer is the language-model surface the generator needs. *llm.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Generator produces the spoken script for a job. The output pauses at the
// human-review gate; nothing here advances the pipeline.
type Generator struct {
	completer      Completer
	targetLanguage string
	closingLine    string
}

func NewGenerator(completer Completer, targetLanguage, closingLine string) *Generator {
	return &Generator{
		completer:      completer,
		targetLanguage: targetLanguage,
		closingLine:    strings.TrimSpace(closingLine),
	}
}

const scriptSystemPrompt = `You write voice-over narration scripts for short videos. You receive a cleaned transcript and produce a script a narrator reads aloud, in the requested language.

Rules:
- Declarative, energetic narration. No questions to the audience.
- No timestamps, no scene directions, no markdown, no speaker labels.
- Keep the factual content of the transcript; tighten the wording for speech.
- One paragraph per beat, plain text only.`

// Generate asks the model for a narration script, removes interrogative
// lines, and appends the closing call-to-action.
func (g *Generator) Generate(ctx context.Context, transcriptText, title string) (string, error) {
	transcriptText = strings.TrimSpace(transcriptText)
	if transcriptText == "" {
		return "", services.Wrap(services.ErrContent, "script", "generate", "empty transcript", nil)
	}
	var user strings.Builder
	if title = strings.TrimSpace(title); title != "" {
		fmt.Fprintf(&user, "Video title: %s\n", title)
	}
	fmt.Fprintf(&user, "Language: %s\n\nTranscript:\n%s", g.targetLanguage, transcriptText)

	raw, err := g.completer.Complete(ctx, scriptSystemPrompt, user.String())
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "script", "generate", "completion failed", err)
	}

	script := removeInterrogativeLines(raw)
	if script == "" {
		return "", services.Wrap(services.ErrContent, "script", "generate", "no usable script content", nil)
	}
	if g.closingLine != "" && !strings.Contains(script, g.closingLine) {
		script += "\n\n" + g.closingLine
	}
	return script, nil
}

// Question terminators across the scripts we dub into. A line ending in one
// of these is a rhetorical question, which narration must not carry.
var questionMarks = []string{"?", "？", "؟"}

func removeInterrogativeLines(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			if len(kept) > 0 && kept[len(kept)-1] != "" {
				kept = append(kept, "")
			}
			continue
		}
		if isInterrogative(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	for len(kept) > 0 && kept[len(kept)-1] == "" {
		kept = kept[:len(kept)-1]
	}
	return strings.Join(kept, "\n")
}

func isInterrogative(line string) bool {
	for _, mark := range questionMarks {
		if strings.HasSuffix(line, mark) {
			return true
		}
	}
	return false
}
