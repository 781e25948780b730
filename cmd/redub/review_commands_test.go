package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"redub/internal/queue"
)

func reviewJob(t *testing.T, env *cliTestEnv) *queue.Job {
	t.Helper()
	ctx := context.Background()
	job, err := env.store.NewJob(ctx, "https://example.com/review-me", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	job.Status = queue.StatusAwaitingReview
	job.ReviewStatus = queue.ReviewPending
	job.ScriptText = "पहली पंक्ति।\nदूसरी पंक्ति।"
	if err := env.store.Update(ctx, job); err != nil {
		t.Fatalf("update job: %v", err)
	}
	return job
}

func TestReviewListsAwaitingJobsAndPrintsScript(t *testing.T) {
	env := setupCLITestEnv(t)
	job := reviewJob(t, env)

	out, _, err := runCLI(t, []string{"review"}, env.configPath)
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	requireContains(t, out, fmt.Sprintf("%d", job.ID))
	requireContains(t, out, "pending_review")

	out, _, err = runCLI(t, []string{"review", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("review id: %v", err)
	}
	requireContains(t, out, "पहली पंक्ति।")
}

func TestApproveReleasesJobToSynthesis(t *testing.T) {
	env := setupCLITestEnv(t)
	job := reviewJob(t, env)

	out, _, err := runCLI(t, []string{"approve", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	requireContains(t, out, "approved")

	updated, err := env.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusScripted {
		t.Fatalf("expected scripted, got %s", updated.Status)
	}
	if updated.ReviewStatus != queue.ReviewApproved {
		t.Fatalf("expected approved review, got %s", updated.ReviewStatus)
	}
	if !updated.HumanEdited {
		t.Fatal("expected human_edited to be set")
	}
}

func TestApproveReplacesScriptFromFile(t *testing.T) {
	env := setupCLITestEnv(t)
	job := reviewJob(t, env)

	edited := filepath.Join(t.TempDir(), "edited.txt")
	if err := os.WriteFile(edited, []byte("संपादित स्क्रिप्ट।"), 0o644); err != nil {
		t.Fatalf("write edited script: %v", err)
	}

	_, _, err := runCLI(t, []string{"approve", fmt.Sprintf("%d", job.ID), "--script", edited}, env.configPath)
	if err != nil {
		t.Fatalf("approve --script: %v", err)
	}

	updated, err := env.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.ScriptText != "संपादित स्क्रिप्ट।" {
		t.Fatalf("script text not replaced: %q", updated.ScriptText)
	}
}

func TestApproveRequiresAwaitingReview(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	job, err := env.store.NewJob(ctx, "https://example.com/not-ready", "hi")
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	_, _, err = runCLI(t, []string{"approve", fmt.Sprintf("%d", job.ID)}, env.configPath)
	if err == nil {
		t.Fatal("expected error approving a pending job")
	}
}

func TestRejectRetiresJob(t *testing.T) {
	env := setupCLITestEnv(t)
	job := reviewJob(t, env)

	out, _, err := runCLI(t, []string{"reject", fmt.Sprintf("%d", job.ID), "--note", "wrong tone"}, env.configPath)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	requireContains(t, out, "rejected")

	updated, err := env.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if updated.ReviewStatus != queue.ReviewRejected {
		t.Fatalf("expected rejected review, got %s", updated.ReviewStatus)
	}
	if updated.ReviewNote != "wrong tone" {
		t.Fatalf("expected note kept, got %q", updated.ReviewNote)
	}
}

func TestRejectWithReviseRequeuesScripting(t *testing.T) {
	env := setupCLITestEnv(t)
	job := reviewJob(t, env)

	_, _, err := runCLI(t, []string{"reject", fmt.Sprintf("%d", job.ID), "--revise"}, env.configPath)
	if err != nil {
		t.Fatalf("reject --revise: %v", err)
	}

	updated, err := env.store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if updated.Status != queue.StatusEnhanced {
		t.Fatalf("expected enhanced, got %s", updated.Status)
	}
	if updated.ReviewStatus != queue.ReviewNeedsRevision {
		t.Fatalf("expected needs_revision, got %s", updated.ReviewStatus)
	}
	if updated.ScriptText != "" {
		t.Fatal("expected script text cleared for regeneration")
	}
	if updated.HumanEdited {
		t.Fatal("revision must keep the review gate in place")
	}
}
