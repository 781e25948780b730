package queue

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// rollbackClause builds the CASE expression that rewinds each processing
// status to the start of its stage, plus the matching WHERE placeholders.
func rollbackClause() (caseSQL string, caseArgs []any, statusArgs []any) {
	var b strings.Builder
	b.WriteString("CASE status")
	for _, tr := range stageRollbackTransitions {
		b.WriteString(" WHEN ? THEN ?")
		caseArgs = append(caseArgs, tr.from, tr.to)
		statusArgs = append(statusArgs, tr.from)
	}
	b.WriteString(" ELSE status END")
	return b.String(), caseArgs, statusArgs
}

// ResetStuckProcessing resets jobs in processing states back to the start of their current stage.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	caseSQL, caseArgs, statusArgs := rollbackClause()
	args := append([]any{}, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, statusArgs...)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = `+caseSQL+`,
             progress_stage = 'Reset from stuck processing',
             progress_percent = 0, progress_message = NULL, last_heartbeat = NULL,
             run_token = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(statusArgs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now.Format(time.RFC3339Nano),
		now.Format(time.RFC3339Nano),
		id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// ReclaimStaleProcessing returns jobs stuck in processing back to the start of their current stage when heartbeats expire.
func (s *Store) ReclaimStaleProcessing(ctx context.Context, cutoff time.Time) (int64, error) {
	caseSQL, caseArgs, statusArgs := rollbackClause()
	args := append([]any{}, caseArgs...)
	args = append(args, time.Now().UTC().Format(time.RFC3339Nano))
	args = append(args, statusArgs...)
	args = append(args, cutoff.UTC().Format(time.RFC3339Nano))

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
        SET status = `+caseSQL+`,
            progress_stage = 'Reclaimed from stale processing',
            progress_percent = 0, progress_message = NULL, last_heartbeat = NULL,
            run_token = NULL, updated_at = ?
        WHERE status IN (`+makePlaceholders(len(statusArgs))+`) AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// FailProcessing marks all in-flight jobs failed with the given reason.
// Called on daemon shutdown so restarts see a consistent queue.
func (s *Store) FailProcessing(ctx context.Context, reason string) (int64, error) {
	_, _, statusArgs := rollbackClause()
	args := []any{StatusFailed, reason, reason, time.Now().UTC().Format(time.RFC3339Nano)}
	args = append(args, statusArgs...)

	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, progress_stage = 'Failed', progress_percent = 0,
             progress_message = ?, last_heartbeat = NULL, run_token = NULL, updated_at = ?
         WHERE status IN (`+makePlaceholders(len(statusArgs))+`)`,
		args...,
	)
	if err != nil {
		return 0, fmt.Errorf("fail processing jobs: %w", err)
	}
	return res.RowsAffected()
}
