// Package enhance runs the AI enhancement stage: the per-source transcripts
// are merged, cleaned, and (when needed) translated into one authoritative
// transcript.
package enhance

import (
	"context"
	"log/slog"
	"strings"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/stage"
	"redub/internal/transcript"
)

// Handler is the enhancement stage.
type Handler struct {
	cfg    *config.Config
	store  stage.Ledger
	merger *transcript.Merger
	logger *slog.Logger
}

func NewHandler(cfg *config.Config, store stage.Ledger, logger *slog.Logger, completer transcript.Completer) (*Handler, error) {
	sanitizer, err := transcript.NewSanitizer(cfg.Pipeline.TargetScript, cfg.Pipeline.ExtraDenyPhrases)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "enhance", "build sanitizer", "", err)
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		store:  store,
		merger: transcript.NewMerger(completer, sanitizer),
		logger: logging.NewComponentLogger(logger, "enhance"),
	}, nil
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.MergedTranscript) == "" &&
		strings.TrimSpace(job.PrimaryTranscript) == "" &&
		strings.TrimSpace(job.SecondaryTranscript) == "" {
		return services.Wrap(services.ErrContent, "enhance", "validate inputs", "no transcripts to enhance", nil)
	}
	job.InitProgress("Enhancing", "Merging and cleaning transcripts")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	return stage.RunLedgered(ctx, h.store, job, queue.StageEnhance, func(ctx context.Context) error {
		result, err := h.merger.Merge(ctx, transcript.MergeInput{
			Primary:        job.PrimaryTranscript,
			Secondary:      job.SecondaryTranscript,
			Visual:         job.VisualTranscript,
			TargetLanguage: h.cfg.Pipeline.TargetLanguage,
			Title:          job.Title,
		})
		if err != nil {
			return err
		}
		job.EnhancedTranscript = result.TimedText
		if result.Translated {
			logger.Info("transcript translated into target script",
				logging.String("language", h.cfg.Pipeline.TargetLanguage))
		}
		job.SetProgress("Enhancing", "Transcript enhanced", 100)
		return nil
	})
}

func (h *Handler) HealthCheck(_ context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.LLM.APIKey) == "" {
		return stage.Unhealthy("enhance", "llm api_key not configured")
	}
	return stage.Healthy("enhance")
}
