// Package transcription fans one downloaded video out to the enabled
// transcription sources, applies the confidence retry policy to the local
// model, and reconciles the results into the job record.
//
// Sources run concurrently; each gets its own ledger stage and its own
// timeout. A source that blows its timeout is abandoned, not cancelled, and a
// straggler result arriving after abandonment is discarded. The stage as a
// whole succeeds when at least one enabled source produces a transcript.
package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/services/whisperapi"
	"redub/internal/services/whisperx"
	"redub/internal/tasks"
	"redub/internal/textutil"
	"redub/internal/transcript"
)

// PrimarySource is the hosted transcription API surface.
type PrimarySource interface {
	Transcribe(ctx context.Context, audioPath, language string) (whisperapi.Result, error)
}

// LocalSource is the local whisper runner surface.
type LocalSource interface {
	Transcribe(ctx context.Context, source, outputDir, language, model string) (whisperx.Result, error)
}

// VisualSource is the frame-caption surface.
type VisualSource interface {
	Transcribe(ctx context.Context, videoPath, workDir string) (string, error)
}

// StageRecorder is the slice of the queue store the coordinator writes
// through. The run-token guard keeps an abandoned straggler from overwriting
// ledger rows owned by a newer run.
type StageRecorder interface {
	SetStageGuarded(ctx context.Context, id int64, runToken string, stage queue.Stage, status queue.StageStatus, stageErr string) error
}

// AudioExtractor pulls a mono 16 kHz wav out of the source video for the
// transcription backends.
type AudioExtractor func(ctx context.Context, source, dest string) error

// Outcome carries the per-source transcripts plus the reconciled baseline.
type Outcome struct {
	Primary   string
	Secondary string
	Visual    string
	// Merged is the timestamped transcript of the preferred source, the
	// baseline the enhancement stage starts from.
	Merged string
	// Partial is set when at least one enabled source failed while another
	// succeeded. Note then names the failed sources for the job record.
	Partial bool
	Note    string
	// LocalModel is the model tier the accepted local run used, after any
	// confidence escalation.
	LocalModel string
}

type sourceResult struct {
	stage      queue.Stage
	transcript string
	model      string
	err        error
}

// Coordinator drives the dual-source transcription stage for one job.
type Coordinator struct {
	cfg     *config.Config
	store   StageRecorder
	primary PrimarySource
	local   LocalSource
	visual  VisualSource
	extract AudioExtractor
	policy  RetryPolicy
	logger  *slog.Logger
}

func NewCoordinator(cfg *config.Config, store StageRecorder, primary PrimarySource, local LocalSource, visual VisualSource, extract AudioExtractor, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Coordinator{
		cfg:     cfg,
		store:   store,
		primary: primary,
		local:   local,
		visual:  visual,
		extract: extract,
		policy: RetryPolicy{
			Threshold: cfg.Transcription.ConfidenceLogProb,
			MaxModel:  cfg.Transcription.MaxLocalModel,
		},
		logger: logging.NewComponentLogger(logger, "transcription"),
	}
}

func (c *Coordinator) sourceTimeout() time.Duration {
	if c.cfg.Transcription.SourceTimeout <= 0 {
		return 0
	}
	return time.Duration(c.cfg.Transcription.SourceTimeout) * time.Second
}

// Run transcribes the job's video through every enabled source. workDir holds
// the extracted audio, whisper output, and visual frames for this run.
func (c *Coordinator) Run(ctx context.Context, job *queue.Job, workDir string) (Outcome, error) {
	enabled := c.enabledStages()
	if len(enabled) == 0 {
		return Outcome{}, services.Wrap(services.ErrConfiguration, "transcribe", "plan", "no transcription sources enabled", nil)
	}
	for _, stage := range queue.TranscriptionStages() {
		if !enabled[stage] {
			if err := c.store.SetStageGuarded(ctx, job.ID, job.RunToken, stage, queue.StageSkipped, ""); err != nil {
				return Outcome{}, err
			}
		}
	}

	audioPath, err := c.prepareAudio(ctx, job, workDir, enabled)
	if err != nil {
		return Outcome{}, err
	}

	results := make(chan sourceResult, len(enabled))
	timeout := c.sourceTimeout()
	if enabled[queue.StageTranscribePrimary] {
		go c.runSource(ctx, job, queue.StageTranscribePrimary, timeout, results, func(ctx context.Context) (string, string, error) {
			res, err := c.primary.Transcribe(ctx, audioPath, c.cfg.Transcription.SourceLanguage)
			if err != nil {
				return "", "", err
			}
			return hostedTranscript(res), "", nil
		})
	}
	if enabled[queue.StageTranscribeSecond] {
		go c.runSource(ctx, job, queue.StageTranscribeSecond, timeout, results, func(ctx context.Context) (string, string, error) {
			return c.runLocal(ctx, audioPath, workDir)
		})
	}
	if enabled[queue.StageTranscribeVisual] {
		go c.runSource(ctx, job, queue.StageTranscribeVisual, timeout, results, func(ctx context.Context) (string, string, error) {
			text, err := c.visual.Transcribe(ctx, job.VideoFile, workDir)
			return text, "", err
		})
	}

	outcome := Outcome{}
	var failures []string
	for range len(enabled) {
		res := <-results
		if res.err != nil {
			failures = append(failures, fmt.Sprintf("%s: %s", res.stage, services.Message(res.err)))
			continue
		}
		switch res.stage {
		case queue.StageTranscribePrimary:
			outcome.Primary = res.transcript
		case queue.StageTranscribeSecond:
			outcome.Secondary = res.transcript
			outcome.LocalModel = res.model
		case queue.StageTranscribeVisual:
			outcome.Visual = res.transcript
		}
	}

	if len(failures) == len(enabled) {
		return Outcome{}, services.Wrap(services.ErrExternalTool, "transcribe", "sources", strings.Join(failures, "; "), nil)
	}
	outcome.Partial = len(failures) > 0
	outcome.Merged = c.reconcile(outcome)
	if outcome.Merged == "" {
		// Only the visual source produced output; captions alone cannot seed a
		// spoken transcript.
		return Outcome{}, services.Wrap(services.ErrContent, "transcribe", "reconcile", "no speech transcript from any source", nil)
	}
	if outcome.Partial {
		outcome.Note = "partial transcription: " + strings.Join(failures, "; ")
		c.logger.Warn("transcription partial", logging.Args(
			logging.Int64("job_id", job.ID),
			logging.String("failures", strings.Join(failures, "; ")),
		)...)
	}
	if strings.TrimSpace(outcome.Primary) != "" && strings.TrimSpace(outcome.Secondary) != "" {
		// Low agreement between independent sources usually means one of them
		// mangled the audio; surface it for review rather than failing the job.
		score := textutil.Agreement(outcome.Primary, outcome.Secondary)
		level := c.logger.Info
		if score < 0.5 {
			level = c.logger.Warn
		}
		level("transcription source agreement", logging.Args(
			logging.Int64("job_id", job.ID),
			logging.Float64("agreement", score),
		)...)
	}
	return outcome, nil
}

func (c *Coordinator) enabledStages() map[queue.Stage]bool {
	enabled := make(map[queue.Stage]bool, 3)
	if c.cfg.Transcription.PrimaryEnabled && c.primary != nil {
		enabled[queue.StageTranscribePrimary] = true
	}
	if c.cfg.Transcription.LocalEnabled && c.local != nil {
		enabled[queue.StageTranscribeSecond] = true
	}
	if c.cfg.Transcription.VisualEnabled && c.visual != nil {
		enabled[queue.StageTranscribeVisual] = true
	}
	return enabled
}

func (c *Coordinator) prepareAudio(ctx context.Context, job *queue.Job, workDir string, enabled map[queue.Stage]bool) (string, error) {
	if !enabled[queue.StageTranscribePrimary] && !enabled[queue.StageTranscribeSecond] {
		return "", nil
	}
	audioPath := filepath.Join(workDir, "audio.wav")
	if err := c.extract(ctx, job.VideoFile, audioPath); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "transcribe", "extract audio", "", err)
	}
	return audioPath, nil
}

// runSource executes one source under its timeout, recording the ledger
// transitions. The fn result carries (transcript, model, error); model is only
// meaningful for the local source.
func (c *Coordinator) runSource(ctx context.Context, job *queue.Job, stage queue.Stage, timeout time.Duration, results chan<- sourceResult, fn func(context.Context) (string, string, error)) {
	if err := c.store.SetStageGuarded(ctx, job.ID, job.RunToken, stage, queue.StageRunning, ""); err != nil {
		results <- sourceResult{stage: stage, err: err}
		return
	}

	type payload struct {
		transcript string
		model      string
	}
	outcome := tasks.Await(ctx, timeout, func(ctx context.Context) (payload, error) {
		transcriptText, model, err := fn(ctx)
		return payload{transcript: transcriptText, model: model}, err
	})

	res := sourceResult{stage: stage, transcript: outcome.Result.transcript, model: outcome.Result.model}
	switch {
	case outcome.TimedOut:
		res.err = services.Wrap(services.ErrTimeout, "transcribe", string(stage), "timed out", nil)
	case outcome.Err != nil:
		res.err = outcome.Err
	case strings.TrimSpace(res.transcript) == "":
		res.err = services.Wrap(services.ErrContent, "transcribe", string(stage), "empty transcript", nil)
	}

	status := queue.StageDone
	errText := ""
	if res.err != nil {
		status = queue.StageFailed
		errText = services.Message(res.err)
	}
	if err := c.store.SetStageGuarded(ctx, job.ID, job.RunToken, stage, status, errText); err != nil {
		// On ErrStaleRun a newer run owns the ledger row; the result still
		// goes on the channel so this run's fan-in can unwind instead of
		// waiting out the stage timeout.
		res.err = err
	}
	results <- res
}

// runLocal runs the local model, escalating one tier when the confidence
// policy asks for it.
func (c *Coordinator) runLocal(ctx context.Context, audioPath, workDir string) (string, string, error) {
	model := c.cfg.Transcription.LocalModel
	res, err := c.local.Transcribe(ctx, audioPath, workDir, c.cfg.Transcription.SourceLanguage, model)
	if err != nil {
		return "", "", err
	}
	if model == "" {
		model = res.Model
	}
	if next, ok := c.policy.NextModel(model, segmentConfidences(res.Segments)); ok {
		c.logger.Info("low confidence, escalating local model", logging.Args(
			logging.String("from", model),
			logging.String("to", next),
		)...)
		retried, err := c.local.Transcribe(ctx, audioPath, workDir, c.cfg.Transcription.SourceLanguage, next)
		if err == nil {
			return localTranscript(retried), next, nil
		}
		c.logger.Warn("escalated run failed, keeping first result", logging.Args(logging.Error(err))...)
	}
	return localTranscript(res), model, nil
}

func (c *Coordinator) reconcile(outcome Outcome) string {
	order := []string{outcome.Secondary, outcome.Primary}
	if strings.EqualFold(c.cfg.Pipeline.PreferSource, "primary") {
		order = []string{outcome.Primary, outcome.Secondary}
	}
	for _, candidate := range order {
		if strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	return ""
}

func segmentConfidences(segments []whisperx.Segment) []float64 {
	confidences := make([]float64, 0, len(segments))
	for _, seg := range segments {
		confidences = append(confidences, seg.AvgLogProb)
	}
	return confidences
}

func hostedTranscript(res whisperapi.Result) string {
	segments := make([]transcript.Segment, 0, len(res.Segments))
	for _, seg := range res.Segments {
		segments = append(segments, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	if len(segments) == 0 && strings.TrimSpace(res.Text) != "" {
		return "00:00:00 " + strings.TrimSpace(res.Text)
	}
	return transcript.TimedText(transcript.FromSegments(segments))
}

func localTranscript(res whisperx.Result) string {
	segments := make([]transcript.Segment, 0, len(res.Segments))
	for _, seg := range res.Segments {
		segments = append(segments, transcript.Segment{Start: seg.Start, End: seg.End, Text: seg.Text})
	}
	return transcript.TimedText(transcript.FromSegments(segments))
}
