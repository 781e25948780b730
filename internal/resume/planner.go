// Package resume rewinds a job to its first incomplete pipeline step so the
// daemon can pick it up again without repeating finished work.
package resume

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
)

// Plan describes how a job will be rewound.
type Plan struct {
	JobID       int64
	From        string
	Status      queue.Status
	ResetStages []queue.Stage
	NoOp        bool
}

// checkpoint is one resumable point in pipeline order. Complete inspects the
// persisted job; a checkpoint whose artifact vanished from disk counts as
// incomplete even when its ledger stage says done. Clear blanks the
// checkpoint's job fields and deletes any media it stored on disk, so a rerun
// cannot pick up a superseded file.
type checkpoint struct {
	name     string
	status   queue.Status
	stages   []queue.Stage
	complete func(job *queue.Job) bool
	clear    func(job *queue.Job)
}

var checkpoints = []checkpoint{
	{
		name:   "download",
		status: queue.StatusPending,
		stages: []queue.Stage{queue.StageDownload},
		complete: func(job *queue.Job) bool {
			return fileExists(job.VideoFile)
		},
		clear: func(job *queue.Job) {
			removeArtifact(job.VideoFile)
			job.VideoFile = ""
			job.MediaInfoJSON = ""
		},
	},
	{
		name:   "transcribe",
		status: queue.StatusDownloaded,
		stages: queue.TranscriptionStages(),
		complete: func(job *queue.Job) bool {
			return strings.TrimSpace(job.MergedTranscript) != ""
		},
		clear: func(job *queue.Job) {
			job.PrimaryTranscript = ""
			job.SecondaryTranscript = ""
			job.VisualTranscript = ""
			job.MergedTranscript = ""
		},
	},
	{
		name:   "enhance",
		status: queue.StatusTranscribed,
		stages: []queue.Stage{queue.StageEnhance},
		complete: func(job *queue.Job) bool {
			return strings.TrimSpace(job.EnhancedTranscript) != ""
		},
		clear: func(job *queue.Job) {
			job.EnhancedTranscript = ""
		},
	},
	{
		name:   "script",
		status: queue.StatusEnhanced,
		stages: []queue.Stage{queue.StageScript},
		complete: func(job *queue.Job) bool {
			return strings.TrimSpace(job.ScriptText) != ""
		},
		clear: func(job *queue.Job) {
			removeArtifact(job.ScriptFile)
			job.ScriptText = ""
			job.ScriptFile = ""
			job.ReviewStatus = queue.ReviewNone
			job.ReviewNote = ""
		},
	},
	{
		// Scripts pending or sent back by a reviewer park the job at the
		// review gate instead of regenerating the script.
		name:   "review",
		status: queue.StatusAwaitingReview,
		complete: func(job *queue.Job) bool {
			switch job.ReviewStatus {
			case queue.ReviewPending, queue.ReviewNeedsRevision, queue.ReviewRejected:
				return false
			}
			return true
		},
	},
	{
		name:   "synthesize",
		status: queue.StatusScripted,
		stages: []queue.Stage{queue.StageSynthesize},
		complete: func(job *queue.Job) bool {
			return fileExists(job.SpeechFile)
		},
		clear: func(job *queue.Job) {
			removeArtifact(job.SpeechFile)
			job.SpeechFile = ""
			job.SpeechSpeed = 0
		},
	},
	{
		name:   "assemble",
		status: queue.StatusSynthesized,
		stages: []queue.Stage{queue.StageAssemble},
		complete: func(job *queue.Job) bool {
			return fileExists(job.FinalFile)
		},
		clear: func(job *queue.Job) {
			removeArtifact(job.SilentVideoFile)
			removeArtifact(job.FinalFile)
			job.SilentVideoFile = ""
			job.FinalFile = ""
			// Whatever was published came from the superseded final file.
			job.PublishedURL = ""
		},
	},
}

// Planner computes and applies resume plans against the queue store.
type Planner struct {
	store  *queue.Store
	logger *slog.Logger
}

func NewPlanner(store *queue.Store, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Planner{store: store, logger: logging.NewComponentLogger(logger, "resume")}
}

// PlanFor inspects a job and reports where it would resume, without touching
// the store.
func PlanFor(job *queue.Job) Plan {
	for i, point := range checkpoints {
		if point.complete(job) {
			continue
		}
		plan := Plan{JobID: job.ID, From: point.name, Status: point.status}
		for _, later := range checkpoints[i:] {
			plan.ResetStages = append(plan.ResetStages, later.stages...)
		}
		return plan
	}
	return Plan{JobID: job.ID, NoOp: true}
}

// Resume rewinds the job to its first incomplete checkpoint: downstream
// ledger stages go back to not started, downstream artifacts are cleared, and
// the coarse status is set so the matching lane picks the job up again.
func (p *Planner) Resume(ctx context.Context, jobID int64) (Plan, error) {
	job, err := p.store.GetByID(ctx, jobID)
	if err != nil {
		return Plan{}, err
	}
	if job == nil {
		return Plan{}, services.Wrap(services.ErrNotFound, "resume", "load job", fmt.Sprintf("job %d not found", jobID), nil)
	}
	if job.IsProcessing() {
		return Plan{}, services.Wrap(services.ErrConfiguration, "resume", "load job",
			fmt.Sprintf("job %d is currently %s; stop the daemon or wait before resuming", jobID, job.Status), nil)
	}

	plan := PlanFor(job)
	if plan.NoOp {
		if job.Status != queue.StatusCompleted {
			job.Status = queue.StatusCompleted
			job.ErrorMessage = ""
			if err := p.store.Update(ctx, job); err != nil {
				return Plan{}, err
			}
		}
		return plan, nil
	}

	for _, st := range plan.ResetStages {
		if err := p.store.SetStage(ctx, job.ID, st, queue.StageNotStarted, ""); err != nil {
			return Plan{}, err
		}
	}
	from := indexOf(plan.From)
	for _, point := range checkpoints[from:] {
		if point.clear != nil {
			point.clear(job)
		}
	}
	job.Status = plan.Status
	job.RunToken = ""
	job.ErrorMessage = ""
	job.LastHeartbeat = nil
	job.SetProgress("", fmt.Sprintf("Resuming from %s", plan.From), 0)
	if err := p.store.Update(ctx, job); err != nil {
		return Plan{}, err
	}

	p.logger.Info("job rewound",
		logging.Int64("job_id", job.ID),
		logging.String("from", plan.From),
		logging.String("status", string(plan.Status)),
	)
	return plan, nil
}

func indexOf(name string) int {
	for i, point := range checkpoints {
		if point.name == name {
			return i
		}
	}
	return 0
}

// removeArtifact deletes a stored stage output. Best effort: a file already
// gone is the state we want anyway.
func removeArtifact(path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	_ = os.Remove(path)
}

func fileExists(path string) bool {
	if strings.TrimSpace(path) == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
