// Package synthesis turns the approved narration script into speech audio at
// a speed that fits the source video's duration.
package synthesis

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/media/ffprobe"
	"redub/internal/queue"
	"redub/internal/scriptgen"
	"redub/internal/services"
	"redub/internal/services/tts"
	"redub/internal/stage"
	"redub/internal/staging"
	"redub/internal/transcript"
)

// Speech is the TTS surface the handler drives.
type Speech interface {
	Synthesize(ctx context.Context, text string, speed float64, dest string) error
	HealthCheck(ctx context.Context) error
}

type prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler is the synthesis stage.
type Handler struct {
	cfg    *config.Config
	store  stage.Ledger
	speech Speech
	probe  prober
	logger *slog.Logger
}

func NewHandler(cfg *config.Config, store stage.Ledger, logger *slog.Logger) *Handler {
	client := tts.NewClient(tts.Config{
		APIKey:         cfg.TTS.APIKey,
		BaseURL:        cfg.TTS.BaseURL,
		Model:          cfg.TTS.Model,
		Voice:          cfg.TTS.Voice,
		StylePrompt:    cfg.TTS.StylePrompt,
		TimeoutSeconds: cfg.TTS.TimeoutSeconds,
	})
	return NewHandlerWithDependencies(cfg, store, logger, client, ffprobe.Inspect)
}

func NewHandlerWithDependencies(cfg *config.Config, store stage.Ledger, logger *slog.Logger, speech Speech, probe prober) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		store:  store,
		speech: speech,
		probe:  probe,
		logger: logging.NewComponentLogger(logger, "synthesis"),
	}
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.ScriptText) == "" {
		return services.Wrap(services.ErrContent, "synthesize", "validate inputs", "no script to synthesize", nil)
	}
	job.InitProgress("Synthesizing", "Generating narration audio")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	return stage.RunLedgered(ctx, h.store, job, queue.StageSynthesize, func(ctx context.Context) error {
		speed := h.speechSpeed(ctx, job, logger)
		workDir, err := staging.EnsureJobDir(h.cfg.Paths.StagingDir, job.ID)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "synthesize", "prepare staging", "", err)
		}
		speechPath := filepath.Join(workDir, "speech.mp3")
		if err := h.speech.Synthesize(ctx, job.ScriptText, speed, speechPath); err != nil {
			return services.Wrap(services.ErrExternalTool, "synthesize", "tts", "", err)
		}
		job.SpeechFile = speechPath
		job.SpeechSpeed = speed
		job.SetProgress("Synthesizing", "Narration audio ready", 100)
		return nil
	})
}

// speechSpeed probes the source video for a target duration. A failed probe
// falls back to neutral speed rather than failing the stage.
func (h *Handler) speechSpeed(ctx context.Context, job *queue.Job, logger *slog.Logger) float64 {
	if strings.TrimSpace(job.VideoFile) == "" {
		return 1.0
	}
	probed, err := h.probe(ctx, h.cfg.FFprobeBinary(), job.VideoFile)
	if err != nil {
		logger.Warn("duration probe failed, using neutral speed", logging.Error(err))
		return 1.0
	}
	words := transcript.WordCount(job.ScriptText)
	speed := scriptgen.SpeechSpeed(words, probed.DurationSeconds())
	logger.Info("speech speed calculated",
		logging.Int("words", words),
		logging.Float64("target_seconds", probed.DurationSeconds()),
		logging.Float64("speed", speed),
	)
	return speed
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.speech.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("synthesis", err.Error())
	}
	return stage.Healthy("synthesis")
}
