// Package download ingests the source video: fetches metadata, downloads the
// file through yt-dlp into the job's staging directory, and probes the result.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/media/ffprobe"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/services/ytdlp"
	"redub/internal/stage"
	"redub/internal/staging"
)

// Fetcher is the yt-dlp surface the handler drives.
type Fetcher interface {
	FetchMetadata(ctx context.Context, sourceURL string) (ytdlp.Metadata, error)
	Download(ctx context.Context, sourceURL, destDir string) (string, error)
	HealthCheck(ctx context.Context) error
}

type prober func(ctx context.Context, binary, path string) (ffprobe.Result, error)

// Handler is the download stage.
type Handler struct {
	cfg     *config.Config
	store   *queue.Store
	fetcher Fetcher
	probe   prober
	logger  *slog.Logger
}

func NewHandler(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Handler {
	service := ytdlp.NewService(ytdlp.Config{Binary: cfg.YtdlpBinary(), Format: mediaFormat(cfg)})
	return NewHandlerWithDependencies(cfg, store, logger, service, ffprobe.Inspect)
}

func NewHandlerWithDependencies(cfg *config.Config, store *queue.Store, logger *slog.Logger, fetcher Fetcher, probe prober) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:     cfg,
		store:   store,
		fetcher: fetcher,
		probe:   probe,
		logger:  logging.NewComponentLogger(logger, "download"),
	}
}

func mediaFormat(cfg *config.Config) string {
	if strings.TrimSpace(cfg.Download.Format) == "" || cfg.Download.Format == "mp4" {
		return ytdlp.DefaultFormat
	}
	return cfg.Download.Format
}

func (h *Handler) Prepare(_ context.Context, job *queue.Job) error {
	if strings.TrimSpace(job.SourceURL) == "" {
		return services.Wrap(services.ErrConfiguration, "download", "validate inputs", "job has no source URL", nil)
	}
	job.InitProgress("Downloading", "Fetching source video")
	return nil
}

func (h *Handler) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, h.logger)
	return stage.RunLedgered(ctx, h.store, job, queue.StageDownload, func(ctx context.Context) error {
		workDir, err := staging.EnsureJobDir(h.cfg.Paths.StagingDir, job.ID)
		if err != nil {
			return services.Wrap(services.ErrConfiguration, "download", "prepare staging", "", err)
		}

		if meta, err := h.fetcher.FetchMetadata(ctx, job.SourceURL); err != nil {
			logger.Warn("metadata fetch failed", logging.Error(err))
		} else {
			if title := strings.TrimSpace(meta.Title); title != "" {
				job.Title = title
			}
			if encoded, err := json.Marshal(meta); err == nil {
				job.MetadataJSON = string(encoded)
			}
		}

		videoPath, err := h.fetcher.Download(ctx, job.SourceURL, workDir)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "download", "yt-dlp", "", err)
		}

		probed, err := h.probe(ctx, h.cfg.FFprobeBinary(), videoPath)
		if err != nil {
			return services.Wrap(services.ErrExternalTool, "download", "probe video", "", err)
		}
		if _, ok := probed.FirstVideo(); !ok {
			return services.Wrap(services.ErrContent, "download", "probe video", "downloaded file has no video stream", nil)
		}
		if !probed.HasAudio() {
			return services.Wrap(services.ErrContent, "download", "probe video", "source video has no audio stream to transcribe", nil)
		}

		job.VideoFile = videoPath
		job.MediaInfoJSON = string(probed.RawJSON())
		job.SetProgress("Downloading", fmt.Sprintf("Downloaded %s", filepath.Base(videoPath)), 100)
		return nil
	})
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.fetcher.HealthCheck(ctx); err != nil {
		return stage.Unhealthy("download", err.Error())
	}
	return stage.Healthy("download")
}
