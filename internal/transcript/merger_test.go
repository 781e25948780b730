package transcript

import (
	"context"
	"errors"
	"strings"
	"testing"

	"redub/internal/services"
)

type fakeCompleter struct {
	responses []string
	err       error
	prompts   []string
	systems   []string
}

func (f *fakeCompleter) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	f.systems = append(f.systems, systemPrompt)
	f.prompts = append(f.prompts, userPrompt)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", nil
	}
	resp := f.responses[0]
	f.responses = f.responses[1:]
	return resp, nil
}

func TestMergeSkipsTranslationWhenAlreadyInTargetScript(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"00:00:01 नमस्ते दोस्तों\n00:00:05 आज का विषय",
	}}
	merger := NewMerger(completer, newDevanagariSanitizer(t))

	result, err := merger.Merge(context.Background(), MergeInput{
		Primary:        "hello friends",
		Secondary:      "hello friends today",
		TargetLanguage: "hi",
		Title:          "demo",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if result.Translated {
		t.Fatal("expected no translation pass")
	}
	if len(completer.prompts) != 1 {
		t.Fatalf("expected one completion call, got %d", len(completer.prompts))
	}
	if !strings.Contains(completer.prompts[0], "Hosted transcription") ||
		!strings.Contains(completer.prompts[0], "Local transcription") {
		t.Fatalf("merge prompt missing sources: %q", completer.prompts[0])
	}
	if len(result.Lines) != 2 || result.PlainText == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestMergeTranslatesWhenScriptMismatches(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		"00:00:01 hello everyone welcome back\n00:00:05 today we talk about cars",
		"00:00:01 सभी को नमस्ते वापसी पर स्वागत है\n00:00:05 आज हम कारों की बात करेंगे",
	}}
	merger := NewMerger(completer, newDevanagariSanitizer(t))

	result, err := merger.Merge(context.Background(), MergeInput{
		Primary:        "hello everyone",
		TargetLanguage: "hi",
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !result.Translated {
		t.Fatal("expected translation pass")
	}
	if len(completer.prompts) != 2 {
		t.Fatalf("expected two completion calls, got %d", len(completer.prompts))
	}
	if !strings.Contains(result.PlainText, "नमस्ते") {
		t.Fatalf("expected translated text, got %q", result.PlainText)
	}
}

func TestMergeFailsWithoutSources(t *testing.T) {
	merger := NewMerger(&fakeCompleter{}, newDevanagariSanitizer(t))
	_, err := merger.Merge(context.Background(), MergeInput{TargetLanguage: "hi"})
	if !errors.Is(err, services.ErrContent) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestMergeFailsWhenNothingSurvivesCleaning(t *testing.T) {
	completer := &fakeCompleter{responses: []string{"Sorry, I cannot help with that."}}
	merger := NewMerger(completer, newDevanagariSanitizer(t))
	_, err := merger.Merge(context.Background(), MergeInput{Primary: "text", TargetLanguage: "hi"})
	if !errors.Is(err, services.ErrContent) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestMergePropagatesProviderError(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("upstream 502")}
	merger := NewMerger(completer, newDevanagariSanitizer(t))
	_, err := merger.Merge(context.Background(), MergeInput{Primary: "text", TargetLanguage: "hi"})
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}
