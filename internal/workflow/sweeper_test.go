package workflow

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/staging"
	"redub/internal/testsupport"
)

func TestSweeperFailsStuckStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.TranscribeTimeout = 60
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	job.Status = queue.StatusTranscribing
	job.RunToken = "run-1"
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.SetStage(context.Background(), job.ID, queue.StageTranscribePrimary, queue.StageRunning, ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	// Evaluate the scan as if the stage had been running past its timeout.
	sweeper := NewSweeper(cfg, store, logging.NewNop())
	sweeper.failStuckStages(context.Background(), time.Now().Add(5*time.Minute))

	updated, _ := store.GetByID(context.Background(), job.ID)
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if !strings.Contains(updated.ErrorMessage, "stuck") {
		t.Fatalf("expected stuck message, got %q", updated.ErrorMessage)
	}
	if updated.RunToken != "" {
		t.Fatalf("expected run token cleared, got %q", updated.RunToken)
	}
}

func TestSweeperLeavesHealthyStagesAlone(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.TranscribeTimeout = 3600
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	job.Status = queue.StatusTranscribing
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := store.SetStage(context.Background(), job.ID, queue.StageTranscribePrimary, queue.StageRunning, ""); err != nil {
		t.Fatalf("SetStage: %v", err)
	}

	NewSweeper(cfg, store, logging.NewNop()).Sweep(context.Background())

	updated, _ := store.GetByID(context.Background(), job.ID)
	if updated.Status != queue.StatusTranscribing {
		t.Fatalf("expected transcribing untouched, got %s", updated.Status)
	}
}

func TestSweeperRemovesOrphanedStaging(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	job.Status = queue.StatusDownloaded
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	liveDir, err := staging.EnsureJobDir(cfg.Paths.StagingDir, job.ID)
	if err != nil {
		t.Fatalf("EnsureJobDir: %v", err)
	}
	orphanDir, err := staging.EnsureJobDir(cfg.Paths.StagingDir, job.ID+100)
	if err != nil {
		t.Fatalf("EnsureJobDir: %v", err)
	}

	NewSweeper(cfg, store, logging.NewNop()).Sweep(context.Background())

	if _, err := os.Stat(liveDir); err != nil {
		t.Fatalf("live staging dir removed: %v", err)
	}
	if _, err := os.Stat(orphanDir); !os.IsNotExist(err) {
		t.Fatalf("expected orphan dir removed, got %v", err)
	}
}
