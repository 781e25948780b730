package queue_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"redub/internal/queue"
	"redub/internal/testsupport"
)

func TestOpenCreatesSchema(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job, err := store.NewJob(ctx, "https://www.youtube.com/shorts/abc123", "hi")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != queue.StatusPending {
		t.Fatalf("expected pending status, got %s", job.Status)
	}
	if job.Fingerprint == "" {
		t.Fatal("expected fingerprint to be set")
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched == nil || fetched.TargetLanguage != "hi" {
		t.Fatalf("unexpected fetched job: %#v", fetched)
	}

	found, err := store.FindByFingerprint(ctx, job.Fingerprint)
	if err != nil {
		t.Fatalf("FindByFingerprint failed: %v", err)
	}
	if found == nil || found.ID != job.ID {
		t.Fatalf("expected to find inserted job, got %#v", found)
	}
}

func TestNewJobDedupesByFingerprint(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.NewJob(ctx, "https://www.youtube.com/shorts/abc123?si=tracker", "")
	if err != nil {
		t.Fatalf("NewJob failed: %v", err)
	}

	// Same video behind a different share link.
	second, err := store.NewJob(ctx, "https://WWW.YouTube.com/shorts/abc123?utm_source=mail", "")
	if !errors.Is(err, queue.ErrDuplicateSource) {
		t.Fatalf("expected ErrDuplicateSource, got %v", err)
	}
	if second == nil || second.ID != first.ID {
		t.Fatalf("expected duplicate to return existing job %d, got %#v", first.ID, second)
	}

	jobs, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected one job, got %d", len(jobs))
	}
}

func TestUpdatePersistsFields(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://example.com/watch?v=persist")
	job.Status = queue.StatusDownloaded
	job.Title = "Sample Short"
	job.VideoFile = "/tmp/staging/1/video.mp4"
	job.SpeechSpeed = 1.2
	job.ReviewStatus = queue.ReviewApproved
	job.HumanEdited = true
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != queue.StatusDownloaded {
		t.Fatalf("status not persisted: %s", fetched.Status)
	}
	if fetched.Title != "Sample Short" || fetched.VideoFile != "/tmp/staging/1/video.mp4" {
		t.Fatalf("fields not persisted: %#v", fetched)
	}
	if fetched.SpeechSpeed != 1.2 {
		t.Fatalf("speech speed not persisted: %v", fetched.SpeechSpeed)
	}
	if fetched.ReviewStatus != queue.ReviewApproved || !fetched.HumanEdited {
		t.Fatalf("review fields not persisted: %#v", fetched)
	}
}

func TestUpdatePersistsNotesAndWarnings(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://example.com/watch?v=notes")
	job.TranscriptionNote = "partial transcription: transcribe_primary: 502 bad gateway"
	job.AddWarning("publish failed, final video kept locally: bucket unreachable")
	job.AddWarning("completion notification failed: webhook 500")
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.TranscriptionNote != job.TranscriptionNote {
		t.Fatalf("transcription note not persisted: %q", fetched.TranscriptionNote)
	}
	want := "publish failed, final video kept locally: bucket unreachable\ncompletion notification failed: webhook 500"
	if fetched.Warnings != want {
		t.Fatalf("warnings not persisted: %q", fetched.Warnings)
	}
}

func TestStageLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://example.com/watch?v=ledger")

	states, err := store.StageStates(ctx, job.ID)
	if err != nil {
		t.Fatalf("StageStates failed: %v", err)
	}
	for stage, state := range states {
		if state.Status != queue.StageNotStarted {
			t.Fatalf("expected %s not_started, got %s", stage, state.Status)
		}
	}

	if err := store.SetStage(ctx, job.ID, queue.StageDownload, queue.StageRunning, ""); err != nil {
		t.Fatalf("SetStage running failed: %v", err)
	}
	if err := store.SetStage(ctx, job.ID, queue.StageDownload, queue.StageDone, ""); err != nil {
		t.Fatalf("SetStage done failed: %v", err)
	}
	if err := store.SetStage(ctx, job.ID, queue.StageTranscribePrimary, queue.StageFailed, "api unreachable"); err != nil {
		t.Fatalf("SetStage failed failed: %v", err)
	}

	states, err = store.StageStates(ctx, job.ID)
	if err != nil {
		t.Fatalf("StageStates failed: %v", err)
	}
	download := states[queue.StageDownload]
	if download.Status != queue.StageDone || download.StartedAt == nil || download.FinishedAt == nil {
		t.Fatalf("unexpected download state: %#v", download)
	}
	primary := states[queue.StageTranscribePrimary]
	if primary.Status != queue.StageFailed || primary.Error != "api unreachable" {
		t.Fatalf("unexpected primary state: %#v", primary)
	}
	if states[queue.StageEnhance].Status != queue.StageNotStarted {
		t.Fatalf("untouched stage changed: %#v", states[queue.StageEnhance])
	}
}

func TestSetStageGuardedRejectsStaleRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://example.com/watch?v=guarded")
	job.RunToken = "run-1"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	if err := store.SetStageGuarded(ctx, job.ID, "run-1", queue.StageEnhance, queue.StageDone, ""); err != nil {
		t.Fatalf("SetStageGuarded with live token failed: %v", err)
	}

	// A newer run takes over the job.
	job.RunToken = "run-2"
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	err := store.SetStageGuarded(ctx, job.ID, "run-1", queue.StageScript, queue.StageDone, "")
	if !errors.Is(err, queue.ErrStaleRun) {
		t.Fatalf("expected ErrStaleRun, got %v", err)
	}

	states, err := store.StageStates(ctx, job.ID)
	if err != nil {
		t.Fatalf("StageStates failed: %v", err)
	}
	if states[queue.StageScript].Status != queue.StageNotStarted {
		t.Fatalf("stale write should not land: %#v", states[queue.StageScript])
	}
	if states[queue.StageEnhance].Status != queue.StageDone {
		t.Fatalf("guarded write with live token lost: %#v", states[queue.StageEnhance])
	}
}

func TestResetRunningStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "https://example.com/watch?v=reset")
	if err := store.SetStage(ctx, job.ID, queue.StageDownload, queue.StageDone, ""); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}
	if err := store.SetStage(ctx, job.ID, queue.StageTranscribeSecond, queue.StageRunning, ""); err != nil {
		t.Fatalf("SetStage failed: %v", err)
	}

	if err := store.ResetRunningStages(ctx, job.ID); err != nil {
		t.Fatalf("ResetRunningStages failed: %v", err)
	}

	states, err := store.StageStates(ctx, job.ID)
	if err != nil {
		t.Fatalf("StageStates failed: %v", err)
	}
	if states[queue.StageTranscribeSecond].Status != queue.StageNotStarted {
		t.Fatalf("running stage not rewound: %#v", states[queue.StageTranscribeSecond])
	}
	if states[queue.StageDownload].Status != queue.StageDone {
		t.Fatalf("done stage should survive reset: %#v", states[queue.StageDownload])
	}
}

func TestResetStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	cases := []struct {
		name          string
		initialStatus queue.Status
		expected      queue.Status
	}{
		{"downloading", queue.StatusDownloading, queue.StatusPending},
		{"transcribing", queue.StatusTranscribing, queue.StatusDownloaded},
		{"enhancing", queue.StatusEnhancing, queue.StatusTranscribed},
		{"scripting", queue.StatusScripting, queue.StatusEnhanced},
		{"synthesizing", queue.StatusSynthesizing, queue.StatusScripted},
		{"assembling", queue.StatusAssembling, queue.StatusSynthesized},
	}
	var ids []int64
	for i, tc := range cases {
		job := testsupport.NewJob(t, store, fmt.Sprintf("https://example.com/watch?v=reset-%d", i))
		job.Status = tc.initialStatus
		job.ProgressStage = tc.name
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		ids = append(ids, job.ID)
	}

	count, err := store.ResetStuckProcessing(ctx)
	if err != nil {
		t.Fatalf("ResetStuckProcessing failed: %v", err)
	}
	if int(count) != len(cases) {
		t.Fatalf("expected %d jobs reset, got %d", len(cases), count)
	}

	for i, tc := range cases {
		job, err := store.GetByID(ctx, ids[i])
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if job.Status != tc.expected {
			t.Fatalf("%s: expected %s, got %s", tc.name, tc.expected, job.Status)
		}
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stale := testsupport.NewJob(t, store, "https://example.com/watch?v=stale")
	stale.Status = queue.StatusTranscribing
	old := time.Now().Add(-time.Hour).UTC()
	stale.LastHeartbeat = &old
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	fresh := testsupport.NewJob(t, store, "https://example.com/watch?v=fresh")
	fresh.Status = queue.StatusTranscribing
	now := time.Now().UTC()
	fresh.LastHeartbeat = &now
	if err := store.Update(ctx, fresh); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	count, err := store.ReclaimStaleProcessing(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaimed job, got %d", count)
	}

	reclaimed, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if reclaimed.Status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded after reclaim, got %s", reclaimed.Status)
	}

	untouched, err := store.GetByID(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if untouched.Status != queue.StatusTranscribing {
		t.Fatalf("fresh job should keep processing, got %s", untouched.Status)
	}
}

func TestNextForStatusesReturnsOldest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first := testsupport.NewJob(t, store, "https://example.com/watch?v=first")
	// Creation timestamps carry nanosecond precision; no sleep needed between inserts.
	second := testsupport.NewJob(t, store, "https://example.com/watch?v=second")

	next, err := store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != first.ID {
		t.Fatalf("expected oldest pending job %d, got %#v", first.ID, next)
	}

	first.Status = queue.StatusCompleted
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	next, err = store.NextForStatuses(ctx, queue.StatusPending)
	if err != nil {
		t.Fatalf("NextForStatuses failed: %v", err)
	}
	if next == nil || next.ID != second.ID {
		t.Fatalf("expected job %d, got %#v", second.ID, next)
	}
}

func TestHealthCounts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	statuses := []queue.Status{
		queue.StatusPending,
		queue.StatusTranscribing,
		queue.StatusAwaitingReview,
		queue.StatusCompleted,
		queue.StatusFailed,
	}
	for i, status := range statuses {
		job := testsupport.NewJob(t, store, fmt.Sprintf("https://example.com/watch?v=health-%d", i))
		job.Status = status
		if err := store.Update(ctx, job); err != nil {
			t.Fatalf("Update failed: %v", err)
		}
	}

	health, err := store.Health(ctx)
	if err != nil {
		t.Fatalf("Health failed: %v", err)
	}
	if health.Total != 5 || health.Pending != 1 || health.Processing != 1 ||
		health.Review != 1 || health.Completed != 1 || health.Failed != 1 {
		t.Fatalf("unexpected health summary: %#v", health)
	}
}

func TestFingerprintNormalization(t *testing.T) {
	base := queue.FingerprintSourceURL("https://www.youtube.com/shorts/xyz789")
	cases := []string{
		"HTTPS://WWW.YOUTUBE.COM/shorts/xyz789",
		"https://www.youtube.com/shorts/xyz789/",
		"https://www.youtube.com/shorts/xyz789?si=abcdef",
		"https://www.youtube.com/shorts/xyz789#t=10",
		"  https://www.youtube.com/shorts/xyz789  ",
	}
	for _, raw := range cases {
		if got := queue.FingerprintSourceURL(raw); got != base {
			t.Errorf("fingerprint of %q diverged: %s != %s", raw, got, base)
		}
	}

	other := queue.FingerprintSourceURL("https://www.youtube.com/shorts/xyz789?v=other")
	if other == base {
		t.Error("distinct query parameters should change the fingerprint")
	}
}
