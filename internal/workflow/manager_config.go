package workflow

import (
	"time"

	"redub/internal/queue"
)

// ConfigureStages registers the concrete stage handlers the workflow will run.
// Download and transcription share the ingest lane; everything downstream of
// the transcript runs in the produce lane, so a long local transcription never
// starves jobs that are already past it.
func (m *Manager) ConfigureStages(set StageSet) {
	ingest := &laneState{kind: laneIngest, name: "ingest"}
	produce := &laneState{kind: laneProduce, name: "produce"}

	stageTimeout := func(seconds int) time.Duration {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds) * time.Second
	}

	if set.Download != nil {
		ingest.stages = append(ingest.stages, pipelineStage{
			name:             "download",
			handler:          set.Download,
			startStatus:      queue.StatusPending,
			processingStatus: queue.StatusDownloading,
			doneStatus:       queue.StatusDownloaded,
			timeout:          stageTimeout(m.cfg.Workflow.DownloadTimeout),
		})
	}
	if set.Transcribe != nil {
		ingest.stages = append(ingest.stages, pipelineStage{
			name:             "transcribe",
			handler:          set.Transcribe,
			startStatus:      queue.StatusDownloaded,
			processingStatus: queue.StatusTranscribing,
			doneStatus:       queue.StatusTranscribed,
			timeout:          stageTimeout(m.cfg.Workflow.TranscribeTimeout),
		})
	}
	if set.Enhance != nil {
		produce.stages = append(produce.stages, pipelineStage{
			name:             "enhance",
			handler:          set.Enhance,
			startStatus:      queue.StatusTranscribed,
			processingStatus: queue.StatusEnhancing,
			doneStatus:       queue.StatusEnhanced,
			timeout:          stageTimeout(m.cfg.Workflow.EnhanceTimeout),
		})
	}
	if set.Script != nil {
		// The script handler sets awaiting_review itself when the job needs a
		// human pass; scripted is only the default advance.
		produce.stages = append(produce.stages, pipelineStage{
			name:             "script",
			handler:          set.Script,
			startStatus:      queue.StatusEnhanced,
			processingStatus: queue.StatusScripting,
			doneStatus:       queue.StatusScripted,
			timeout:          stageTimeout(m.cfg.Workflow.ScriptTimeout),
		})
	}
	if set.Synthesize != nil {
		produce.stages = append(produce.stages, pipelineStage{
			name:             "synthesize",
			handler:          set.Synthesize,
			startStatus:      queue.StatusScripted,
			processingStatus: queue.StatusSynthesizing,
			doneStatus:       queue.StatusSynthesized,
			timeout:          stageTimeout(m.cfg.Workflow.SynthesizeTimeout),
		})
	}
	if set.Assemble != nil {
		produce.stages = append(produce.stages, pipelineStage{
			name:             "assemble",
			handler:          set.Assemble,
			startStatus:      queue.StatusSynthesized,
			processingStatus: queue.StatusAssembling,
			doneStatus:       queue.StatusCompleted,
			timeout:          stageTimeout(m.cfg.Workflow.AssembleTimeout),
		})
	}

	lanes := make(map[laneKind]*laneState)
	order := make([]laneKind, 0, 2)

	if len(ingest.stages) > 0 {
		ingest.finalize()
		lanes[ingest.kind] = ingest
		order = append(order, ingest.kind)
	}
	if len(produce.stages) > 0 {
		produce.finalize()
		lanes[produce.kind] = produce
		order = append(order, produce.kind)
	}

	for _, lane := range lanes {
		lane.runReclaimer = len(lane.processingStatuses) > 0
	}

	m.mu.Lock()
	m.lanes = lanes
	m.laneOrder = order
	m.mu.Unlock()
}
