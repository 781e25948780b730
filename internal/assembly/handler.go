package assembly

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"redub/internal/config"
	"redub/internal/fileutil"
	"redub/internal/logging"
	"redub/internal/notifications"
	"redub/internal/publish"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/stage"
	"redub/internal/staging"
)

// Assembler covers the ffmpeg work the handler drives.
type Assembler interface {
	StripAudio(ctx context.Context, videoPath, dest string) error
	Assemble(ctx context.Context, silentVideo, speechPath, dest string) error
}

// ReleasePublisher pushes the final video out after assembly.
type ReleasePublisher interface {
	Enabled() bool
	Publish(ctx context.Context, job *queue.Job) (publish.Result, error)
}

// Handler is the final pipeline stage: it replaces the source audio with the
// synthesized narration, moves the result into the output directory, and
// hands it to the publisher.
type Handler struct {
	cfg       *config.Config
	store     stage.Ledger
	assembler Assembler
	publisher ReleasePublisher
	notifier  notifications.Service
	logger    *slog.Logger
}

func NewHandler(cfg *config.Config, store stage.Ledger, logger *slog.Logger, assembler Assembler, publisher ReleasePublisher, notifier notifications.Service) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:       cfg,
		store:     store,
		assembler: assembler,
		publisher: publisher,
		notifier:  notifier,
		logger:    logging.NewComponentLogger(logger, "assembly"),
	}
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.VideoFile) == "" {
		return services.Wrap(services.ErrContent, "assemble", "validate inputs", "no source video to assemble", nil)
	}
	if strings.TrimSpace(job.SpeechFile) == "" {
		return services.Wrap(services.ErrContent, "assemble", "validate inputs", "no synthesized speech to assemble", nil)
	}
	job.InitProgress("Assembling", "Re-assembling video with narration")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	err := stage.RunLedgered(ctx, h.store, job, queue.StageAssemble, func(ctx context.Context) error {
		workDir, err := staging.EnsureJobDir(h.cfg.Paths.StagingDir, job.ID)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "assemble", "prepare staging", "", err)
		}

		silentPath := filepath.Join(workDir, "silent.mp4")
		if err := h.assembler.StripAudio(ctx, job.VideoFile, silentPath); err != nil {
			return err
		}
		job.SilentVideoFile = silentPath
		job.SetProgress("Assembling", "Source audio stripped", 40)

		assembledPath := filepath.Join(workDir, "final.mp4")
		if err := h.assembler.Assemble(ctx, silentPath, job.SpeechFile, assembledPath); err != nil {
			return err
		}
		job.SetProgress("Assembling", "Narration muxed", 80)

		finalPath, err := h.deliver(job, assembledPath)
		if err != nil {
			return err
		}
		job.FinalFile = finalPath
		job.SetProgress("Assembling", "Final video ready", 100)
		return nil
	})
	if err != nil {
		return err
	}

	h.publishAndNotify(ctx, job, logger)

	if err := staging.RemoveJobDir(h.cfg.Paths.StagingDir, job.ID); err != nil {
		logger.Warn("staging cleanup failed", logging.Error(err))
	}
	return nil
}

// publishAndNotify runs after the ledger closes: the video is already safe in
// the output directory, so publish and notification failures are recorded as
// warnings on the job instead of failing it.
func (h *Handler) publishAndNotify(ctx context.Context, job *queue.Job, logger *slog.Logger) {
	published := false
	if h.publisher != nil && h.publisher.Enabled() {
		result, err := h.publisher.Publish(ctx, job)
		if err != nil {
			job.AddWarning("publish failed, final video kept locally: " + services.Message(err))
			logger.Warn("publish failed, final video kept locally", logging.Error(err))
		} else if result.Uploaded {
			job.PublishedURL = result.URL
			published = true
		}
	}
	if h.notifier == nil {
		return
	}
	var err error
	if published {
		err = h.notifier.NotifyJobPublished(ctx, job.Title, job.PublishedURL)
	} else {
		err = h.notifier.NotifyJobCompleted(ctx, job.Title, job.FinalFile)
	}
	if err != nil {
		job.AddWarning("completion notification failed: " + services.Message(err))
		logger.Warn("completion notification failed", logging.Error(err))
	}
}

// deliver moves the assembled file into the output directory, falling back to
// a copy when staging and output live on different filesystems.
func (h *Handler) deliver(job *queue.Job, assembledPath string) (string, error) {
	if err := os.MkdirAll(h.cfg.Paths.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "assemble", "deliver", "", err)
	}
	finalPath := filepath.Join(h.cfg.Paths.OutputDir, finalName(job))
	if err := os.Rename(assembledPath, finalPath); err != nil {
		if copyErr := fileutil.CopyFileVerified(assembledPath, finalPath); copyErr != nil {
			return "", services.Wrap(services.ErrConfiguration, "assemble", "deliver", "", copyErr)
		}
		_ = os.Remove(assembledPath)
	}
	return finalPath, nil
}

func finalName(job *queue.Job) string {
	return fmt.Sprintf("job-%d-final.mp4", job.ID)
}

func (h *Handler) HealthCheck(_ context.Context) stage.Health {
	if _, err := os.Stat(h.cfg.Paths.OutputDir); err != nil {
		return stage.Unhealthy("assembly", fmt.Sprintf("output directory unavailable: %v", err))
	}
	return stage.Healthy("assembly")
}
