package transcription

import (
	"context"
	"errors"
	"strings"
	"testing"

	"redub/internal/logging"
	"redub/internal/services/whisperapi"
	"redub/internal/services/whisperx"
	"redub/internal/testsupport"
)

func TestExecuteRecordsPartialSourcesOnJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	recorder := newFakeRecorder()
	primary := &fakePrimary{err: errors.New("503 overloaded")}
	local := &fakeLocal{results: map[string]whisperx.Result{
		"small": localResult("small", -0.3, "surviving transcript"),
	}}
	coord := NewCoordinator(cfg, recorder, primary, local, nil, noopExtract, logging.NewNop())
	handler := NewHandlerWithCoordinator(cfg, coord, logging.NewNop())

	job, _ := testJob(t)
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(job.TranscriptionNote, "503 overloaded") {
		t.Fatalf("expected failed source noted on the job, got %q", job.TranscriptionNote)
	}
	if !strings.Contains(job.MergedTranscript, "surviving transcript") {
		t.Fatalf("expected merged transcript on the job, got %q", job.MergedTranscript)
	}
}

func TestExecuteLeavesNoteEmptyOnFullSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	recorder := newFakeRecorder()
	primary := &fakePrimary{result: whisperapi.Result{Text: "hello from hosted"}}
	local := &fakeLocal{results: map[string]whisperx.Result{
		"small": localResult("small", -0.3, "hello from local"),
	}}
	coord := NewCoordinator(cfg, recorder, primary, local, nil, noopExtract, logging.NewNop())
	handler := NewHandlerWithCoordinator(cfg, coord, logging.NewNop())

	job, _ := testJob(t)
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if job.TranscriptionNote != "" {
		t.Fatalf("expected no note on full success, got %q", job.TranscriptionNote)
	}
}
