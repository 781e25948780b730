package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/services"
)

func (m *Manager) handleStageFailure(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	base := m.logger
	if base == nil {
		base = logging.NewNop()
	}
	logger := logging.WithContext(ctx, base).With(logging.String(logging.FieldComponent, "workflow-manager"))

	message := m.classifyStageFailure(stageName, stageErr)
	job.SetFailed(message)
	job.RunToken = ""

	logger.Error("stage failed",
		logging.String(logging.FieldStage, stageName),
		logging.Int64(logging.FieldJobID, job.ID),
		logging.String("error_message", strings.TrimSpace(message)),
		logging.String(logging.FieldEventType, "stage_failure"),
		logging.Error(stageErr),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not update stage failure")
		} else {
			logger.Error("failed to persist stage failure", logging.Error(err))
		}
	}

	m.setLastJob(job)
	m.notifyStageError(ctx, stageName, job, stageErr)
}

func (m *Manager) classifyStageFailure(stageName string, stageErr error) string {
	if stageErr == nil {
		return fmt.Sprintf("%s failed without error detail", stageName)
	}
	message := strings.TrimSpace(services.Message(stageErr))
	if message == "" {
		message = fmt.Sprintf("%s failed", stageName)
	}
	return message
}

func (m *Manager) notifyStageError(ctx context.Context, stageName string, job *queue.Job, stageErr error) {
	if m.notifier == nil || stageErr == nil {
		return
	}
	logger := logging.WithContext(ctx, m.logger.With(logging.String(logging.FieldComponent, "workflow-manager")))
	contextLabel := fmt.Sprintf("%s (job #%d)", stageName, job.ID)
	if err := m.notifier.NotifyError(ctx, stageErr, contextLabel); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send error notification")
		} else {
			logger.Debug("stage error notification failed", logging.Error(err))
		}
	}
}
