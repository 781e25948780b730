package scriptgen

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/notifications"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/stage"
	"redub/internal/staging"
)

// Handler is the script stage. After generation the job either pauses at the
// human-review gate or, when the gate was already passed on a previous run,
// moves straight on to synthesis.
type Handler struct {
	cfg       *config.Config
	store     stage.Ledger
	generator *Generator
	notifier  notifications.Service
	logger    *slog.Logger
}

func NewHandler(cfg *config.Config, store stage.Ledger, logger *slog.Logger, completer Completer, notifier notifications.Service) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		store:     store,
		generator: NewGenerator(completer, cfg.Pipeline.TargetLanguage, cfg.Pipeline.ClosingLine),
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "scriptgen"),
	}
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.EnhancedTranscript) == "" {
		return services.Wrap(services.ErrContent, "script", "validate inputs", "no enhanced transcript to script from", nil)
	}
	job.InitProgress("Scripting", "Generating narration script")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	return stage.RunLedgered(ctx, h.store, job, queue.StageScript, func(ctx context.Context) error {
		script, err := h.generator.Generate(ctx, job.EnhancedTranscript, job.Title)
		if err != nil {
			return err
		}
		workDir, err := staging.EnsureJobDir(h.cfg.Paths.StagingDir, job.ID)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "script", "prepare staging", "", err)
		}
		scriptPath := filepath.Join(workDir, "script.txt")
		if err := os.WriteFile(scriptPath, []byte(script), 0o644); err != nil {
			return services.Wrap(services.ErrConfiguration, "script", "write script file", "", err)
		}
		job.ScriptText = script
		job.ScriptFile = scriptPath

		if job.HumanEdited {
			// The gate was already passed on a previous run of this job.
			job.Status = queue.StatusScripted
			job.SetProgress("Scripting", "Script regenerated, review already passed", 100)
			return nil
		}
		job.Status = queue.StatusAwaitingReview
		job.ReviewStatus = queue.ReviewPending
		job.SetProgress("Awaiting review", "Script ready for review", 100)
		if h.notifier != nil {
			if err := h.notifier.NotifyReviewNeeded(ctx, job.Title, job.ID); err != nil {
				logger.Warn("review notification failed", logging.Error(err))
			}
		}
		return nil
	})
}

func (h *Handler) HealthCheck(_ context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy("scriptgen", "llm api_key not configured")
	}
	return stage.Healthy("scriptgen")
}
