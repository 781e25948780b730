package main

import (
	"context"
	"fmt"
	"testing"

	"redub/internal/queue"
)

func TestQueueClearFailed(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	alpha, err := env.store.NewJob(ctx, "https://example.com/alpha", "hi")
	if err != nil {
		t.Fatalf("alpha: %v", err)
	}
	alpha.Status = queue.StatusFailed
	if err := env.store.Update(ctx, alpha); err != nil {
		t.Fatalf("fail alpha: %v", err)
	}
	if _, err := env.store.NewJob(ctx, "https://example.com/beta", "hi"); err != nil {
		t.Fatalf("beta: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "clear", "--failed"}, env.configPath)
	if err != nil {
		t.Fatalf("queue clear --failed: %v", err)
	}
	requireContains(t, out, "Cleared 1 failed jobs")

	jobs, err := env.store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected the pending job to survive, got %d jobs", len(jobs))
	}
}

func TestQueueClearRejectsConflictingFlags(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"queue", "clear", "--failed", "--completed"}, env.configPath)
	if err == nil {
		t.Fatal("expected flag conflict error")
	}
}

func TestQueueRemove(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "https://example.com/remove-me", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("queue remove: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("Removed job %d", job.ID))

	_, _, err = runCLI(t, []string{"queue", "remove", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err == nil {
		t.Fatal("expected not-found error on second removal")
	}
}

func TestQueueResetStuck(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "https://example.com/stuck", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusTranscribing
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("mark transcribing: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "reset-stuck"}, env.configPath)
	if err != nil {
		t.Fatalf("queue reset-stuck: %v", err)
	}
	requireContains(t, out, "Reset 1 jobs")

	updated, err := env.store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded after reset, got %s", updated.Status)
	}
}

func TestQueueHealthReportsDiagnostics(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	if _, err := env.store.NewJob(ctx, "https://example.com/healthy", "hi"); err != nil {
		t.Fatalf("new job: %v", err)
	}

	out, _, err := runCLI(t, []string{"queue", "health"}, env.configPath)
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	requireContains(t, out, "Database path:")
	requireContains(t, out, "jobs table present: yes")
	requireContains(t, out, "Total jobs: 1")
}
