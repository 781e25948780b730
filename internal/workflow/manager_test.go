package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/stage"
	"redub/internal/testsupport"
)

type stubHandler struct {
	prepare func(*queue.Job) error
	execute func(context.Context, *queue.Job) error
}

func (s *stubHandler) Prepare(_ context.Context, job *queue.Job) error {
	if s.prepare != nil {
		return s.prepare(job)
	}
	return nil
}

func (s *stubHandler) Execute(ctx context.Context, job *queue.Job) error {
	if s.execute != nil {
		return s.execute(ctx, job)
	}
	return nil
}

func (s *stubHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("stub")
}

type recordingNotifier struct {
	mu     sync.Mutex
	errors []string
}

func (r *recordingNotifier) NotifyJobQueued(context.Context, string) error         { return nil }
func (r *recordingNotifier) NotifyReviewNeeded(context.Context, string, int64) error {
	return nil
}
func (r *recordingNotifier) NotifyJobCompleted(context.Context, string, string) error { return nil }
func (r *recordingNotifier) NotifyJobPublished(context.Context, string, string) error { return nil }
func (r *recordingNotifier) NotifyError(_ context.Context, err error, contextLabel string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, contextLabel+": "+err.Error())
	return nil
}
func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

func (r *recordingNotifier) errorCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.errors)
}

func newTestManager(t *testing.T, cfg *config.Config, store *queue.Store) (*Manager, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	return NewManagerWithNotifier(cfg, store, logging.NewNop(), notifier), notifier
}

func allStubStages(execute func(context.Context, *queue.Job) error) StageSet {
	return StageSet{
		Download:   &stubHandler{execute: execute},
		Transcribe: &stubHandler{execute: execute},
		Enhance:    &stubHandler{execute: execute},
		Script:     &stubHandler{execute: execute},
		Synthesize: &stubHandler{execute: execute},
		Assemble:   &stubHandler{execute: execute},
	}
}

func TestProcessJobAdvancesStatusAndClearsToken(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager, _ := newTestManager(t, cfg, store)

	var sawToken string
	set := allStubStages(nil)
	set.Download = &stubHandler{execute: func(_ context.Context, job *queue.Job) error {
		sawToken = job.RunToken
		job.VideoFile = "video.mp4"
		return nil
	}}
	manager.ConfigureStages(set)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	lane := manager.lanes[laneIngest]
	if err := manager.processJob(context.Background(), lane, logging.NewNop(), job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	if sawToken == "" {
		t.Fatal("expected a run token during stage execution")
	}
	updated, err := store.GetByID(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if updated.Status != queue.StatusDownloaded {
		t.Fatalf("expected downloaded, got %s", updated.Status)
	}
	if updated.RunToken != "" {
		t.Fatalf("expected run token cleared, got %q", updated.RunToken)
	}
	if updated.VideoFile != "video.mp4" {
		t.Fatalf("expected handler mutation persisted, got %q", updated.VideoFile)
	}
}

func TestProcessJobHonorsHandlerStatusOverride(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager, _ := newTestManager(t, cfg, store)

	set := allStubStages(nil)
	set.Script = &stubHandler{execute: func(_ context.Context, job *queue.Job) error {
		job.Status = queue.StatusAwaitingReview
		job.ReviewStatus = queue.ReviewPending
		return nil
	}}
	manager.ConfigureStages(set)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	job.Status = queue.StatusEnhanced
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	lane := manager.lanes[laneProduce]
	if err := manager.processJob(context.Background(), lane, logging.NewNop(), job); err != nil {
		t.Fatalf("processJob: %v", err)
	}

	updated, _ := store.GetByID(context.Background(), job.ID)
	if updated.Status != queue.StatusAwaitingReview {
		t.Fatalf("expected review gate to hold, got %s", updated.Status)
	}
	if updated.ReviewStatus != queue.ReviewPending {
		t.Fatalf("expected pending review, got %s", updated.ReviewStatus)
	}
}

func TestProcessJobFailureMarksJobAndNotifies(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager, notifier := newTestManager(t, cfg, store)

	set := allStubStages(nil)
	set.Download = &stubHandler{execute: func(context.Context, *queue.Job) error {
		return services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "exit status 1", nil)
	}}
	manager.ConfigureStages(set)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	lane := manager.lanes[laneIngest]
	err := manager.processJob(context.Background(), lane, logging.NewNop(), job)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}

	updated, _ := store.GetByID(context.Background(), job.ID)
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if !strings.Contains(updated.ErrorMessage, "yt-dlp") {
		t.Fatalf("expected readable error message, got %q", updated.ErrorMessage)
	}
	if strings.Contains(updated.ErrorMessage, services.ErrExternalTool.Error()) {
		t.Fatalf("sentinel prefix should be stripped from persisted message: %q", updated.ErrorMessage)
	}
	if notifier.errorCount() != 1 {
		t.Fatalf("expected one error notification, got %d", notifier.errorCount())
	}
}

func TestProcessJobTimeoutAbandonsRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.DownloadTimeout = 1
	store := testsupport.MustOpenStore(t, cfg)
	manager, notifier := newTestManager(t, cfg, store)

	release := make(chan struct{})
	set := allStubStages(nil)
	set.Download = &stubHandler{execute: func(context.Context, *queue.Job) error {
		<-release
		return nil
	}}
	manager.ConfigureStages(set)
	defer close(release)

	job := testsupport.NewJob(t, store, "https://example.com/v/1")
	lane := manager.lanes[laneIngest]
	err := manager.processJob(context.Background(), lane, logging.NewNop(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}

	updated, _ := store.GetByID(context.Background(), job.ID)
	if updated.Status != queue.StatusFailed {
		t.Fatalf("expected failed, got %s", updated.Status)
	}
	if !strings.Contains(updated.ErrorMessage, "timed out") {
		t.Fatalf("expected timeout message, got %q", updated.ErrorMessage)
	}
	if updated.RunToken != "" {
		t.Fatalf("expected run token cleared so the abandoned run cannot write, got %q", updated.RunToken)
	}
	if notifier.errorCount() != 1 {
		t.Fatalf("expected one error notification, got %d", notifier.errorCount())
	}
}

func TestStartRunsJobThroughBothLanes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Workflow.QueuePollInterval = 1
	store := testsupport.MustOpenStore(t, cfg)
	manager, _ := newTestManager(t, cfg, store)
	manager.ConfigureStages(allStubStages(nil))

	job := testsupport.NewJob(t, store, "https://example.com/v/1")

	if err := manager.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer manager.Stop()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			current, _ := store.GetByID(context.Background(), job.ID)
			t.Fatalf("job did not complete; status %s error %q", current.Status, current.ErrorMessage)
		case <-time.After(50 * time.Millisecond):
		}
		current, err := store.GetByID(context.Background(), job.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if current.Status == queue.StatusFailed {
			t.Fatalf("job failed: %q", current.ErrorMessage)
		}
		if current.Status == queue.StatusCompleted {
			if current.ProgressPercent < 100 {
				t.Fatalf("expected full progress, got %v", current.ProgressPercent)
			}
			return
		}
	}
}

func TestStartRequiresConfiguredStages(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager, _ := newTestManager(t, cfg, store)

	if err := manager.Start(context.Background()); err == nil {
		t.Fatal("expected error when no stages configured")
		manager.Stop()
	}
}

func TestStatusReportsStageHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	manager, _ := newTestManager(t, cfg, store)
	manager.ConfigureStages(allStubStages(nil))

	summary := manager.Status(context.Background())
	if summary.Running {
		t.Fatal("expected not running before Start")
	}
	for _, name := range []string{"download", "transcribe", "enhance", "script", "synthesize", "assemble"} {
		health, ok := summary.StageHealth[name]
		if !ok {
			t.Fatalf("missing health for stage %s", name)
		}
		if !health.Ready {
			t.Fatalf("expected stage %s healthy, got %+v", name, health)
		}
	}
}
