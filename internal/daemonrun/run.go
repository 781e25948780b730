// Package daemonrun hosts the daemon runtime loop shared by `redub start`
// and the redubd binary: single-instance locking, stage wiring, the lane
// manager, and the scheduled stuck-stage sweeper.
package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/robfig/cron/v3"

	"redub/internal/assembly"
	"redub/internal/config"
	"redub/internal/download"
	"redub/internal/enhance"
	"redub/internal/logging"
	"redub/internal/notifications"
	"redub/internal/preflight"
	"redub/internal/publish"
	"redub/internal/queue"
	"redub/internal/scriptgen"
	"redub/internal/services/llm"
	"redub/internal/services/vision"
	"redub/internal/storage"
	"redub/internal/synthesis"
	"redub/internal/transcription"
	"redub/internal/workflow"
)

// LockPath returns the daemon single-instance lock file location.
func LockPath(cfg *config.Config) string {
	return filepath.Join(cfg.Paths.LogDir, "redub.lock")
}

// NewLock builds the flock guarding single-daemon operation.
func NewLock(cfg *config.Config) *flock.Flock {
	return flock.New(LockPath(cfg))
}

// Run starts the redub daemon runtime loop and blocks until the context is
// cancelled or a termination signal arrives.
func Run(cmdCtx context.Context, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lock := NewLock(cfg)
	held, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire daemon lock: %w", err)
	}
	if !held {
		return fmt.Errorf("another redub daemon already holds %s", lock.Path())
	}
	defer lock.Unlock() //nolint:errcheck

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	logDependencySnapshot(logger, cfg)
	for _, check := range preflight.RunAll(signalCtx, cfg) {
		if check.Passed {
			logger.Info("preflight check passed",
				logging.String("check", check.Name),
				logging.String("detail", check.Detail),
			)
			continue
		}
		// Not fatal: a queued job may never reach the stage that needs the
		// failing piece, and the stage will fail loudly if it does.
		logger.Warn("preflight check failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
		)
	}

	pidPath := filepath.Join(cfg.Paths.LogDir, "redub.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}
	defer store.Close()

	// Jobs abandoned by a previous crash go back to their ready state
	// before the lanes start pulling.
	if reset, err := store.ResetStuckProcessing(signalCtx); err != nil {
		logger.Warn("reset stuck jobs", logging.Error(err))
	} else if reset > 0 {
		logger.Info("reset stuck jobs from previous run", logging.Int64("count", reset))
	}

	notifier := notifications.NewService(cfg)
	manager := workflow.NewManagerWithNotifier(cfg, store, logger, notifier)
	stages, err := BuildStages(signalCtx, cfg, store, logger, notifier)
	if err != nil {
		return fmt.Errorf("build stages: %w", err)
	}
	manager.ConfigureStages(stages)

	sweeper := workflow.NewSweeper(cfg, store, logger)
	schedule := cron.New()
	if interval := cfg.Workflow.SweepInterval; interval > 0 {
		if _, err := schedule.AddFunc(fmt.Sprintf("@every %ds", interval), func() {
			sweeper.Sweep(signalCtx)
		}); err != nil {
			return fmt.Errorf("schedule sweeper: %w", err)
		}
		schedule.Start()
		defer schedule.Stop()
	}

	if err := manager.Start(signalCtx); err != nil {
		return err
	}
	logger.Info("redub daemon running",
		logging.String("staging_dir", cfg.Paths.StagingDir),
		logging.String("output_dir", cfg.Paths.OutputDir),
	)

	<-signalCtx.Done()
	logger.Info("redub daemon shutting down")
	manager.Stop()
	return nil
}

// BuildStages wires every stage handler the workflow manager runs. The same
// construction backs both the daemon and the read-only health probes of the
// CLI status command.
func BuildStages(ctx context.Context, cfg *config.Config, store *queue.Store, logger *slog.Logger, notifier notifications.Service) (workflow.StageSet, error) {
	shared := cfg.GetLLM()
	completer := llm.NewClient(llm.Config{
		APIKey:         shared.APIKey,
		BaseURL:        shared.BaseURL,
		Model:          shared.Model,
		Referer:        shared.Referer,
		Title:          shared.Title,
		TimeoutSeconds: shared.TimeoutSeconds,
	})

	var captioner vision.Captioner
	if cfg.Transcription.VisualEnabled {
		captioner = completer
	}

	enhancer, err := enhance.NewHandler(cfg, store, logger, completer)
	if err != nil {
		return workflow.StageSet{}, err
	}

	uploader, err := storage.NewUploader(ctx, cfg.Storage)
	if err != nil {
		return workflow.StageSet{}, err
	}
	publisher := publish.NewPublisher(uploader, cfg.Sheets, logger)

	return workflow.StageSet{
		Download:   download.NewHandler(cfg, store, logger),
		Transcribe: transcription.NewHandler(cfg, store, logger, captioner),
		Enhance:    enhancer,
		Script:     scriptgen.NewHandler(cfg, store, logger, completer, notifier),
		Synthesize: synthesis.NewHandler(cfg, store, logger),
		Assemble:   assembly.NewHandler(cfg, store, logger, assembly.NewPipeline(cfg, logger), publisher, notifier),
	}, nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	for _, status := range preflight.CheckSystemDeps(cfg) {
		logger.Info("dependency snapshot",
			logging.String(logging.FieldEventType, "dependency_snapshot"),
			logging.String("dependency", status.Name),
			logging.Bool("available", status.Available),
			logging.String("detail", status.Detail),
		)
	}
	logger.Info("feature snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("primary_transcription", cfg.Transcription.PrimaryEnabled),
		logging.Bool("local_transcription", cfg.Transcription.LocalEnabled),
		logging.Bool("visual_transcription", cfg.Transcription.VisualEnabled),
		logging.Bool("storage_enabled", cfg.Storage.Enabled),
	)
}
