package main

import (
	"context"
	"fmt"
	"testing"

	"redub/internal/queue"
	"redub/internal/testsupport"
)

func TestResumeRewindsFailedJob(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "https://example.com/resume-me", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	video := testsupport.BaseDir(env.cfg) + "/video.mp4"
	testsupport.WriteText(t, video, "payload")
	job.VideoFile = video
	job.Status = queue.StatusFailed
	job.ErrorMessage = "transcription timed out"
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := env.store.SetStage(ctx, job.ID, queue.StageDownload, queue.StageDone, ""); err != nil {
		t.Fatalf("ledger: %v", err)
	}

	out, _, err := runCLI(t, []string{"resume", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	requireContains(t, out, "resuming from transcribe")

	updated, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", updated.Status)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("expected error cleared, got %q", updated.ErrorMessage)
	}
}

func TestResumeDryRunLeavesJobAlone(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "https://example.com/dry-run", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusFailed
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("update: %v", err)
	}

	out, _, err := runCLI(t, []string{"resume", fmt.Sprintf("%d", job.ID), "--dry-run"}, env.configPath)
	if err != nil {
		t.Fatalf("resume --dry-run: %v", err)
	}
	requireContains(t, out, "would resume from download")

	updated, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("dry run changed status to %s", updated.Status)
	}
}

func TestResumeUnknownJob(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"resume", "4242"}, env.configPath)
	if err == nil {
		t.Fatal("expected not-found error")
	}
}
