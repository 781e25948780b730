package queue

import (
	"strings"
	"time"
)

// Status represents the coarse lifecycle of a job. It drives lane
// scheduling; the per-stage ledger in StageState records fine-grained
// progress within and across statuses.
type Status string

const (
	StatusPending        Status = "pending"
	StatusDownloading    Status = "downloading"
	StatusDownloaded     Status = "downloaded"
	StatusTranscribing   Status = "transcribing"
	StatusTranscribed    Status = "transcribed"
	StatusEnhancing      Status = "enhancing"
	StatusEnhanced       Status = "enhanced"
	StatusScripting      Status = "scripting"
	StatusAwaitingReview Status = "awaiting_review"
	StatusScripted       Status = "scripted"
	StatusSynthesizing   Status = "synthesizing"
	StatusSynthesized    Status = "synthesized"
	StatusAssembling     Status = "assembling"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

// DaemonStopReason is the error message set when jobs are failed due to daemon shutdown.
const DaemonStopReason = "Daemon stopped"

var allStatuses = []Status{
	StatusPending,
	StatusDownloading,
	StatusDownloaded,
	StatusTranscribing,
	StatusTranscribed,
	StatusEnhancing,
	StatusEnhanced,
	StatusScripting,
	StatusAwaitingReview,
	StatusScripted,
	StatusSynthesizing,
	StatusSynthesized,
	StatusAssembling,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusDownloading:  {},
	StatusTranscribing: {},
	StatusEnhancing:    {},
	StatusScripting:    {},
	StatusSynthesizing: {},
	StatusAssembling:   {},
}

type statusTransition struct {
	from Status
	to   Status
}

var stageRollbackTransitions = []statusTransition{
	{from: StatusDownloading, to: StatusPending},
	{from: StatusTranscribing, to: StatusDownloaded},
	{from: StatusEnhancing, to: StatusTranscribed},
	{from: StatusScripting, to: StatusEnhanced},
	{from: StatusSynthesizing, to: StatusScripted},
	{from: StatusAssembling, to: StatusSynthesized},
}

// Stage identifies one entry in the per-job stage ledger.
type Stage string

const (
	StageDownload          Stage = "download"
	StageTranscribePrimary Stage = "transcribe_primary"
	StageTranscribeSecond  Stage = "transcribe_secondary"
	StageTranscribeVisual  Stage = "transcribe_visual"
	StageEnhance           Stage = "enhance"
	StageScript            Stage = "script"
	StageSynthesize        Stage = "synthesize"
	StageAssemble          Stage = "assemble"
)

// AllStages returns the ledger stages in pipeline order.
func AllStages() []Stage {
	return []Stage{
		StageDownload,
		StageTranscribePrimary,
		StageTranscribeSecond,
		StageTranscribeVisual,
		StageEnhance,
		StageScript,
		StageSynthesize,
		StageAssemble,
	}
}

// TranscriptionStages returns the per-source ledger stages of the
// transcription fan-out.
func TranscriptionStages() []Stage {
	return []Stage{StageTranscribePrimary, StageTranscribeSecond, StageTranscribeVisual}
}

var stageSet = func() map[Stage]struct{} {
	set := make(map[Stage]struct{}, 8)
	for _, stage := range AllStages() {
		set[stage] = struct{}{}
	}
	return set
}()

// KnownStage reports whether the value names a ledger stage.
func KnownStage(stage Stage) bool {
	_, ok := stageSet[stage]
	return ok
}

// StageStatus is the state of one ledger stage.
type StageStatus string

const (
	StageNotStarted StageStatus = "not_started"
	StageRunning    StageStatus = "running"
	StageDone       StageStatus = "done"
	StageFailed     StageStatus = "failed"
	StageSkipped    StageStatus = "skipped"
)

// StageState is one row of the per-job stage ledger.
type StageState struct {
	Status     StageStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	Error      string
}

// Complete reports whether the stage needs no further work.
func (s StageState) Complete() bool {
	return s.Status == StageDone || s.Status == StageSkipped
}

// Stuck reports whether the stage has been running longer than timeout as of
// now. A zero timeout disables stuck detection.
func (s StageState) Stuck(timeout time.Duration, now time.Time) bool {
	if timeout <= 0 || s.Status != StageRunning || s.StartedAt == nil {
		return false
	}
	return now.Sub(*s.StartedAt) > timeout
}

// ReviewStatus tracks the human review gate between scripting and synthesis.
type ReviewStatus string

const (
	ReviewNone          ReviewStatus = ""
	ReviewPending       ReviewStatus = "pending_review"
	ReviewApproved      ReviewStatus = "approved"
	ReviewNeedsRevision ReviewStatus = "needs_revision"
	ReviewRejected      ReviewStatus = "rejected"
)

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated queue counts per key lifecycle states.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Review     int
	Failed     int
	Completed  int
}

// Job represents a re-voicing job persisted in SQLite.
type Job struct {
	ID                  int64
	SourceURL           string
	Fingerprint         string
	Title               string
	Status              Status
	RunToken            string
	TargetLanguage      string
	VideoFile           string
	SilentVideoFile     string
	MediaInfoJSON       string
	PrimaryTranscript   string
	SecondaryTranscript string
	VisualTranscript    string
	MergedTranscript    string
	EnhancedTranscript  string
	ScriptFile          string
	ScriptText          string
	SpeechFile          string
	SpeechSpeed         float64
	FinalFile           string
	PublishedURL        string
	ErrorMessage        string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	ProgressStage       string
	ProgressPercent     float64
	ProgressMessage     string
	MetadataJSON        string
	LastHeartbeat       *time.Time
	ReviewStatus        ReviewStatus
	ReviewNote          string
	HumanEdited         bool
	TranscriptionNote   string
	Warnings            string
}

// AddWarning records a non-fatal problem on the job. Warnings accumulate
// newline-separated so earlier entries survive later stages.
func (j *Job) AddWarning(message string) {
	message = strings.TrimSpace(message)
	if message == "" {
		return
	}
	if j.Warnings == "" {
		j.Warnings = message
		return
	}
	j.Warnings += "\n" + message
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// ParseReviewStatus converts a string into a known ReviewStatus.
func ParseReviewStatus(value string) (ReviewStatus, bool) {
	normalized := ReviewStatus(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ReviewPending, ReviewApproved, ReviewNeedsRevision, ReviewRejected:
		return normalized, true
	}
	return ReviewNone, false
}

// IsProcessing returns true when the status reflects an in-flight operation.
func (j Job) IsProcessing() bool {
	_, ok := processingStatuses[j.Status]
	return ok
}

// IsProcessingStatus reports whether a status reflects an in-flight operation.
func IsProcessingStatus(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether the status ends the workflow.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// InitProgress resets progress fields for a new stage. If ProgressStage is
// currently empty it is set to the provided stage value; otherwise the
// existing stage is preserved to support resume scenarios.
func (j *Job) InitProgress(stage, message string) {
	if j.ProgressStage == "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
	j.ProgressPercent = 0
	j.ErrorMessage = ""
}

// SetProgress updates all three progress fields together.
func (j *Job) SetProgress(stage, message string, percent float64) {
	j.ProgressStage = stage
	j.ProgressMessage = message
	j.ProgressPercent = percent
}

// SetProgressComplete sets progress to 100% with the given stage and message.
func (j *Job) SetProgressComplete(stage, message string) {
	j.SetProgress(stage, message, 100)
}

// SetFailed marks the job as failed with the given error message and clears
// the heartbeat.
func (j *Job) SetFailed(message string) {
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressPercent = 0
	j.ProgressMessage = message
	j.LastHeartbeat = nil
	j.ProgressStage = "Failed"
}

// StageKey returns the normalized stage identifier used in CLI presentation.
func (s Status) StageKey() string {
	switch s {
	case "":
		return ""
	case StatusPending:
		return "planned"
	case StatusCompleted:
		return "final"
	case StatusAwaitingReview:
		return "review"
	default:
		if _, ok := statusSet[s]; ok {
			return string(s)
		}
		return ""
	}
}
