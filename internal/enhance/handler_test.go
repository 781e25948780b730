package enhance_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"redub/internal/enhance"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/testsupport"
)

type scriptedCompleter struct {
	response string
	err      error
}

func (s *scriptedCompleter) Complete(context.Context, string, string) (string, error) {
	return s.response, s.err
}

func seededJob(t *testing.T, store *queue.Store) *queue.Job {
	t.Helper()
	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	job.RunToken = "run-1"
	job.PrimaryTranscript = "00:00:01 hello everyone"
	job.SecondaryTranscript = "00:00:01 hello everyone welcome"
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	return job
}

func TestExecutePersistsEnhancedTranscript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.TargetScript = "Devanagari"
	store := testsupport.MustOpenStore(t, cfg)
	job := seededJob(t, store)

	completer := &scriptedCompleter{response: "00:00:01 सभी को नमस्ते\n00:00:04 स्वागत है"}
	handler, err := enhance.NewHandler(cfg, store, logging.NewNop(), completer)
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	if err := handler.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(job.EnhancedTranscript, "00:00:01 सभी को नमस्ते") {
		t.Fatalf("unexpected enhanced transcript: %q", job.EnhancedTranscript)
	}

	states, err := store.StageStates(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("StageStates: %v", err)
	}
	if states[queue.StageEnhance].Status != queue.StageDone {
		t.Fatalf("expected enhance stage done, got %s", states[queue.StageEnhance].Status)
	}
}

func TestExecuteRecordsFailureOnLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.TargetScript = "Devanagari"
	store := testsupport.MustOpenStore(t, cfg)
	job := seededJob(t, store)

	handler, err := enhance.NewHandler(cfg, store, logging.NewNop(), &scriptedCompleter{err: errors.New("503")})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	execErr := handler.Execute(context.Background(), job)
	if !errors.Is(execErr, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", execErr)
	}
	states, err := store.StageStates(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("StageStates: %v", err)
	}
	if states[queue.StageEnhance].Status != queue.StageFailed {
		t.Fatalf("expected enhance stage failed, got %s", states[queue.StageEnhance].Status)
	}
}

func TestPrepareRequiresTranscripts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.TargetScript = "Devanagari"
	store := testsupport.MustOpenStore(t, cfg)

	handler, err := enhance.NewHandler(cfg, store, logging.NewNop(), &scriptedCompleter{})
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}
	if err := handler.Prepare(context.Background(), &queue.Job{}); !errors.Is(err, services.ErrContent) {
		t.Fatalf("expected content error, got %v", err)
	}
}

func TestNewHandlerRejectsUnknownScript(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Pipeline.TargetScript = "Klingon"
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := enhance.NewHandler(cfg, store, logging.NewNop(), &scriptedCompleter{}); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
