package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/staging"
)

// staleStagingAge is how long a job staging directory may outlive its queue
// row before the sweeper removes it.
const staleStagingAge = 14 * 24 * time.Hour

// Sweeper performs periodic queue hygiene the lane loops cannot: detecting
// ledger stages that keep heartbeating without progressing, and removing
// staging directories no live job owns. The daemon schedules it on a cron
// cadence.
type Sweeper struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
	group  singleflight.Group
}

func NewSweeper(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Sweeper{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "sweeper")}
}

// Sweep runs one pass. Errors inside a pass are logged, not returned; the
// next pass retries. A pass that outlives the cron interval coalesces with
// the next tick instead of running twice.
func (s *Sweeper) Sweep(ctx context.Context) {
	_, _, _ = s.group.Do("sweep", func() (any, error) {
		s.failStuckStages(ctx, time.Now())
		s.cleanStaging(ctx)
		return nil, nil
	})
}

// failStuckStages fails jobs whose running ledger stage exceeded its timeout.
// The heartbeat reclaimer only catches dead owners; this catches a live
// process wedged inside a stage while its heartbeat loop keeps the claim
// fresh.
func (s *Sweeper) failStuckStages(ctx context.Context, now time.Time) {
	var processing []queue.Status
	for _, status := range queue.AllStatuses() {
		if queue.IsProcessingStatus(status) {
			processing = append(processing, status)
		}
	}
	jobs, err := s.store.List(ctx, processing...)
	if err != nil {
		s.logger.Warn("stuck-stage scan failed to list jobs", logging.Error(err))
		return
	}
	for _, job := range jobs {
		states, err := s.store.StageStates(ctx, job.ID)
		if err != nil {
			s.logger.Warn("stuck-stage scan failed to read ledger",
				logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
			continue
		}
		for st, state := range states {
			timeout := s.stageTimeout(st)
			if !state.Stuck(timeout, now) {
				continue
			}
			job.SetFailed(fmt.Sprintf("stage %s stuck for more than %s", st, timeout))
			job.RunToken = ""
			if err := s.store.Update(ctx, job); err != nil {
				s.logger.Error("failed to fail stuck job", logging.Int64(logging.FieldJobID, job.ID), logging.Error(err))
				break
			}
			s.logger.Warn("failed stuck job",
				logging.Int64(logging.FieldJobID, job.ID),
				logging.String(logging.FieldStage, string(st)),
				logging.Duration("stage_timeout", timeout),
			)
			break
		}
	}
}

func (s *Sweeper) stageTimeout(st queue.Stage) time.Duration {
	seconds := 0
	switch st {
	case queue.StageDownload:
		seconds = s.cfg.Workflow.DownloadTimeout
	case queue.StageTranscribePrimary, queue.StageTranscribeSecond, queue.StageTranscribeVisual:
		seconds = s.cfg.Workflow.TranscribeTimeout
	case queue.StageEnhance:
		seconds = s.cfg.Workflow.EnhanceTimeout
	case queue.StageScript:
		seconds = s.cfg.Workflow.ScriptTimeout
	case queue.StageSynthesize:
		seconds = s.cfg.Workflow.SynthesizeTimeout
	case queue.StageAssemble:
		seconds = s.cfg.Workflow.AssembleTimeout
	}
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

// cleanStaging removes staging directories whose queue row is gone or
// terminal-completed, then sweeps directories older than the stale cutoff.
func (s *Sweeper) cleanStaging(ctx context.Context) {
	jobs, err := s.store.List(ctx)
	if err != nil {
		s.logger.Warn("staging sweep failed to list jobs", logging.Error(err))
		return
	}
	active := make(map[int64]struct{}, len(jobs))
	for _, job := range jobs {
		if job.Status == queue.StatusCompleted {
			continue
		}
		active[job.ID] = struct{}{}
	}
	if result := staging.CleanOrphaned(s.cfg.Paths.StagingDir, active, s.logger); len(result.Removed) > 0 {
		s.logger.Info("removed orphaned staging directories", logging.Int("count", len(result.Removed)))
	}
	if result := staging.CleanStale(s.cfg.Paths.StagingDir, staleStagingAge, s.logger); len(result.Removed) > 0 {
		s.logger.Info("removed stale staging directories", logging.Int("count", len(result.Removed)))
	}
}
