package transcription

import (
	"context"
	"log/slog"
	"strings"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/services/vision"
	"redub/internal/services/whisperapi"
	"redub/internal/services/whisperx"
	"redub/internal/stage"
	"redub/internal/staging"
)

// Handler is the transcription stage. It delegates the per-source fan-out to
// the Coordinator and persists the resulting transcripts on the job.
type Handler struct {
	cfg         *config.Config
	coordinator *Coordinator
	logger      *slog.Logger
}

func NewHandler(cfg *config.Config, store StageRecorder, logger *slog.Logger, captioner vision.Captioner) *Handler {
	var primary PrimarySource
	if cfg.Transcription.PrimaryEnabled {
		primary = whisperapi.NewClient(whisperapi.Config{
			APIKey:  cfg.Transcription.PrimaryAPIKey,
			BaseURL: cfg.Transcription.PrimaryBaseURL,
			Model:   cfg.Transcription.PrimaryModel,
		})
	}
	var local LocalSource
	if cfg.Transcription.LocalEnabled {
		local = whisperx.NewService(whisperx.Config{
			Model:       cfg.Transcription.LocalModel,
			CUDAEnabled: cfg.Transcription.CUDAEnabled,
		}, cfg.FFmpegBinary())
	}
	var visual VisualSource
	if cfg.Transcription.VisualEnabled && captioner != nil {
		visual = vision.NewService(vision.Config{
			FrameSeconds: cfg.Transcription.VisualFrameSeconds,
			FFmpegBinary: cfg.FFmpegBinary(),
		}, captioner)
	}
	extract := func(ctx context.Context, source, dest string) error {
		return whisperx.ExtractFullAudio(ctx, cfg.FFmpegBinary(), source, dest)
	}
	coordinator := NewCoordinator(cfg, store, primary, local, visual, extract, logger)
	return NewHandlerWithCoordinator(cfg, coordinator, logger)
}

func NewHandlerWithCoordinator(cfg *config.Config, coordinator *Coordinator, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:         cfg,
		coordinator: coordinator,
		logger:      logging.NewComponentLogger(logger, "transcription"),
	}
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.VideoFile) == "" {
		return services.Wrap(services.ErrContent, "transcribe", "validate inputs", "no downloaded video to transcribe", nil)
	}
	job.InitProgress("Transcribing", "Running transcription sources")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	workDir, err := staging.EnsureJobDir(h.cfg.Paths.StagingDir, job.ID)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "transcribe", "prepare staging", "", err)
	}
	outcome, err := h.coordinator.Run(ctx, job, workDir)
	if err != nil {
		return err
	}
	job.PrimaryTranscript = outcome.Primary
	job.SecondaryTranscript = outcome.Secondary
	job.VisualTranscript = outcome.Visual
	job.MergedTranscript = outcome.Merged
	job.TranscriptionNote = outcome.Note
	message := "Transcription complete"
	if outcome.Partial {
		message = "Transcription complete (partial sources)"
	}
	job.SetProgress("Transcribing", message, 100)
	return nil
}

func (h *Handler) HealthCheck(_ context.Context) stage.Health {
	t := h.cfg.Transcription
	if !t.PrimaryEnabled && !t.LocalEnabled {
		return stage.Unhealthy("transcription", "no speech transcription source enabled")
	}
	if t.PrimaryEnabled && strings.TrimSpace(t.PrimaryAPIKey) == "" {
		return stage.Unhealthy("transcription", "primary source enabled without API key")
	}
	return stage.Healthy("transcription")
}
