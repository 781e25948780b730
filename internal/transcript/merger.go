package transcript

import (
	"context"
	"fmt"
	"strings"

	"redub/internal/services"
)

// Completer is the language-model surface the merger needs. *llm.Client
// satisfies it.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// MergeInput carries the raw per-source transcripts for one job. Any field
// may be empty when that source was disabled or failed.
type MergeInput struct {
	Primary        string
	Secondary      string
	Visual         string
	TargetLanguage string
	Title          string
}

// MergeResult is the sanitized, authoritative transcript.
type MergeResult struct {
	Lines      []Line
	TimedText  string
	PlainText  string
	Translated bool
}

// Merger asks the language model to reconcile the transcription sources into
// one enhanced transcript, then sanitizes the answer. When the cleaned result
// is not yet in the target script a single translation follow-up is issued.
type Merger struct {
	completer Completer
	sanitizer *Sanitizer
}

func NewMerger(completer Completer, sanitizer *Sanitizer) *Merger {
	return &Merger{completer: completer, sanitizer: sanitizer}
}

const mergeSystemPrompt = `You merge and enhance video transcripts. You receive one or more raw transcripts of the same video from different sources. Produce a single clean transcript in the requested language.

Rules:
- Output only transcript lines, each as "HH:MM:SS text". No preamble, no commentary, no markdown.
- Prefer the wording of the more accurate source; use the others to fill gaps and fix mishearings.
- Keep the original timestamps of whichever source a line came from.
- Never invent content that is not supported by at least one source.`

const translateSystemPrompt = `You translate timestamped transcripts. Translate the text of every line into the requested language, keeping each "HH:MM:SS" timestamp exactly as given. Output only the translated lines, no commentary.`

// Merge reconciles the sources and returns the sanitized transcript.
func (m *Merger) Merge(ctx context.Context, in MergeInput) (MergeResult, error) {
	user := buildMergePrompt(in)
	if user == "" {
		return MergeResult{}, services.Wrap(services.ErrContent, "enhance", "merge", "no source transcripts to merge", nil)
	}
	raw, err := m.completer.Complete(ctx, mergeSystemPrompt, user)
	if err != nil {
		return MergeResult{}, services.Wrap(services.ErrTransient, "enhance", "merge", "completion failed", err)
	}

	// Script detection has to look at the raw answer: the rune filter in the
	// sanitizer would erase a wrong-script transcript before we could notice
	// it needs translating.
	result := MergeResult{}
	if !m.sanitizer.InTargetScript(raw) {
		raw, err = m.translate(ctx, in.TargetLanguage, raw)
		if err != nil {
			return MergeResult{}, err
		}
		result.Translated = true
	}

	lines := m.sanitizer.Sanitize(raw)
	if len(lines) == 0 {
		return MergeResult{}, services.Wrap(services.ErrContent, "enhance", "merge", "no usable transcript content after cleaning", nil)
	}
	result.Lines = lines
	result.TimedText = TimedText(lines)
	result.PlainText = PlainText(lines)
	return result, nil
}

// translate re-submits the draft transcript for translation. Only the
// timestamped lines are forwarded so model preamble does not ride along.
func (m *Merger) translate(ctx context.Context, targetLanguage, raw string) (string, error) {
	var draft []string
	for _, rawLine := range strings.Split(raw, "\n") {
		if line, ok := ParseLine(stripMarkdown(rawLine)); ok {
			draft = append(draft, FormatTimestamp(line.Seconds)+" "+line.Text)
		}
	}
	if len(draft) == 0 {
		return "", services.Wrap(services.ErrContent, "enhance", "translate", "no usable transcript content after cleaning", nil)
	}
	user := fmt.Sprintf("Target language: %s\n\n%s", targetLanguage, strings.Join(draft, "\n"))
	translated, err := m.completer.Complete(ctx, translateSystemPrompt, user)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "enhance", "translate", "completion failed", err)
	}
	return translated, nil
}

func buildMergePrompt(in MergeInput) string {
	var b strings.Builder
	if title := strings.TrimSpace(in.Title); title != "" {
		fmt.Fprintf(&b, "Video title: %s\n", title)
	}
	fmt.Fprintf(&b, "Target language: %s\n", in.TargetLanguage)
	sections := 0
	appendSection := func(name, text string) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}
		fmt.Fprintf(&b, "\n--- %s ---\n%s\n", name, text)
		sections++
	}
	appendSection("Hosted transcription", in.Primary)
	appendSection("Local transcription", in.Secondary)
	appendSection("Visual analysis", in.Visual)
	if sections == 0 {
		return ""
	}
	return b.String()
}
