package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
	"redub/internal/stage"
	"redub/internal/tasks"
)

func (m *Manager) processJob(ctx context.Context, lane *laneState, laneLogger *slog.Logger, job *queue.Job) error {
	stg, ok := lane.stageForStatus(job.Status)
	if !ok {
		if laneLogger == nil {
			laneLogger = m.logger
		}
		if laneLogger == nil {
			laneLogger = logging.NewNop()
		}
		laneLogger.Warn("no stage configured for status", logging.String("status", string(job.Status)))
		m.waitForJobOrShutdown(ctx)
		return nil
	}

	requestID := uuid.NewString()
	stageCtx := withStageContext(ctx, lane, stg.name, job, requestID)
	stageLogger := m.stageLogger(stageCtx, lane, laneLogger, job)

	if err := m.transitionToProcessing(stageCtx, stg.processingStatus, job); err != nil {
		stageLogger.Error("failed to transition job to processing", logging.Error(err))
		m.setLastError(err)
		return err
	}

	return m.executeStage(stageCtx, stageLogger, stg, job)
}

func (m *Manager) executeStage(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, job *queue.Job) error {
	stageStart := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(stg.processingStatus)),
		logging.String("title", strings.TrimSpace(job.Title)),
		logging.String("source_url", strings.TrimSpace(job.SourceURL)),
	)

	handler := stg.handler
	if handler == nil {
		stageLogger.Warn("missing stage handler", logging.String("stage", stg.name))
		job.SetFailed(fmt.Sprintf("stage %s missing handler", stg.name))
		if err := m.store.Update(ctx, job); err != nil {
			stageLogger.Error("failed to persist missing handler failure", logging.Error(err))
		}
		m.setLastError(errors.New("stage handler unavailable"))
		return errors.New("stage handler unavailable")
	}

	if err := handler.Prepare(ctx, job); err != nil {
		m.handleStageFailure(ctx, stg.name, job, err)
		m.setLastError(err)
		return err
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage preparation: %w", err)
		stageLogger.Error("failed to persist stage preparation", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}

	execErr := m.executeWithHeartbeat(ctx, handler, job, stg.timeout)
	if execErr != nil {
		if errors.Is(execErr, context.Canceled) {
			stageLogger.Debug("stage interrupted by shutdown")
			return execErr
		}
		if errors.Is(execErr, services.ErrTimeout) {
			// The handler goroutine was abandoned and may still mutate its
			// copy of the job; fail a fresh copy so its late writes race with
			// nothing the manager persists.
			m.handleStageTimeout(ctx, stageLogger, stg, job.ID, execErr)
			m.setLastError(execErr)
			return execErr
		}
		m.handleStageFailure(ctx, stg.name, job, execErr)
		m.setLastError(execErr)
		return execErr
	}

	// A handler that moved the job somewhere else (the review gate) wins;
	// the done status only applies when the processing status is untouched.
	if job.Status == stg.processingStatus || job.Status == "" {
		job.Status = stg.doneStatus
	}
	job.LastHeartbeat = nil
	job.RunToken = ""
	if job.Status == queue.StatusCompleted {
		if job.ProgressPercent < 100 {
			job.ProgressPercent = 100
		}
		if strings.TrimSpace(job.ProgressMessage) == "" {
			job.ProgressMessage = deriveStageLabel(queue.StatusCompleted)
		}
	}
	if err := m.store.Update(ctx, job); err != nil {
		wrapped := fmt.Errorf("persist stage result: %w", err)
		stageLogger.Error("failed to persist stage result", logging.Error(wrapped))
		m.setLastError(wrapped)
		return wrapped
	}
	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", string(job.Status)),
		logging.String("progress_message", strings.TrimSpace(job.ProgressMessage)),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	m.setLastJob(job)
	return nil
}

// executeWithHeartbeat runs the handler under the stage timeout while a
// heartbeat loop keeps the job's claim fresh. On timeout the handler keeps
// running detached; its guarded ledger writes fail once the run token is
// cleared.
func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job, timeout time.Duration) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	outcome := tasks.Await(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, handler.Execute(ctx, job)
	})
	if outcome.TimedOut {
		return services.Wrap(services.ErrTimeout, "", "execute stage", fmt.Sprintf("timed out after %s", timeout), nil)
	}
	return outcome.Err
}

func (m *Manager) handleStageTimeout(ctx context.Context, stageLogger *slog.Logger, stg pipelineStage, jobID int64, timeoutErr error) {
	fresh, err := m.store.GetByID(ctx, jobID)
	if err != nil || fresh == nil {
		stageLogger.Error("failed to load job after stage timeout", logging.Error(err))
		return
	}
	m.handleStageFailure(ctx, stg.name, fresh, timeoutErr)
}

func (m *Manager) transitionToProcessing(ctx context.Context, processing queue.Status, job *queue.Job) error {
	if processing == "" {
		return errors.New("processing status must not be empty")
	}

	now := time.Now().UTC()
	job.Status = processing
	job.RunToken = uuid.NewString()
	if job.ProgressStage == "" {
		job.ProgressStage = deriveStageLabel(processing)
	}
	if job.ProgressMessage == "" {
		job.ProgressMessage = fmt.Sprintf("%s started", deriveStageLabel(processing))
	}
	job.ProgressPercent = 0
	job.ErrorMessage = ""
	job.LastHeartbeat = &now

	if err := m.store.Update(ctx, job); err != nil {
		return fmt.Errorf("persist processing transition: %w", err)
	}
	m.setLastJob(job)
	return nil
}
