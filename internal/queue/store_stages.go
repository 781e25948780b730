package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// stageColumnList builds the ledger column groups in the order AllStages
// returns them. Stage names double as column prefixes; KnownStage guards
// every query builder below so user input never reaches the SQL text.
func stageColumnList() string {
	var b strings.Builder
	for i, stage := range AllStages() {
		if i > 0 {
			b.WriteString(", ")
		}
		name := string(stage)
		b.WriteString(name + "_status, " + name + "_started_at, " + name + "_finished_at, " + name + "_error")
	}
	return b.String()
}

// StageStates returns the full stage ledger for a job.
func (s *Store) StageStates(ctx context.Context, id int64) (map[Stage]StageState, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+stageColumnList()+` FROM jobs WHERE id = ?`, id)

	stages := AllStages()
	dest := make([]any, 0, len(stages)*4)
	statuses := make([]sql.NullString, len(stages))
	starts := make([]sql.NullString, len(stages))
	finishes := make([]sql.NullString, len(stages))
	errs := make([]sql.NullString, len(stages))
	for i := range stages {
		dest = append(dest, &statuses[i], &starts[i], &finishes[i], &errs[i])
	}
	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("stage states: %w", err)
	}

	states := make(map[Stage]StageState, len(stages))
	for i, stage := range stages {
		state := StageState{Status: StageNotStarted}
		if statuses[i].Valid && statuses[i].String != "" {
			state.Status = StageStatus(statuses[i].String)
		}
		if starts[i].Valid {
			if t, err := parseTimeString(starts[i].String); err == nil {
				state.StartedAt = &t
			}
		}
		if finishes[i].Valid {
			if t, err := parseTimeString(finishes[i].String); err == nil {
				state.FinishedAt = &t
			}
		}
		state.Error = errs[i].String
		states[stage] = state
	}
	return states, nil
}

// SetStage records a stage transition for a job. Moving to running stamps
// started_at and clears any previous finish and error; terminal states stamp
// finished_at. The write targets only the one stage's column group so
// concurrent transcription sources never clobber each other.
func (s *Store) SetStage(ctx context.Context, id int64, stage Stage, status StageStatus, stageErr string) error {
	query, args, err := stageUpdateQuery(id, "", stage, status, stageErr)
	if err != nil {
		return err
	}
	if err := s.execWithoutResultRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("set stage %s: %w", stage, err)
	}
	return nil
}

// SetStageGuarded behaves like SetStage but only applies when the job still
// carries the given run token. A mismatch returns ErrStaleRun, which stops
// results from an abandoned (timed-out) run overwriting a newer run's ledger.
func (s *Store) SetStageGuarded(ctx context.Context, id int64, runToken string, stage Stage, status StageStatus, stageErr string) error {
	if runToken == "" {
		return errors.New("run token is empty")
	}
	query, args, err := stageUpdateQuery(id, runToken, stage, status, stageErr)
	if err != nil {
		return err
	}
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set stage %s: %w", stage, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrStaleRun
	}
	return nil
}

func stageUpdateQuery(id int64, runToken string, stage Stage, status StageStatus, stageErr string) (string, []any, error) {
	if !KnownStage(stage) {
		return "", nil, fmt.Errorf("unknown stage %q", stage)
	}
	switch status {
	case StageNotStarted, StageRunning, StageDone, StageFailed, StageSkipped:
	default:
		return "", nil, fmt.Errorf("unknown stage status %q", status)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	name := string(stage)
	var (
		query string
		args  []any
	)
	switch status {
	case StageRunning:
		query = `UPDATE jobs SET ` + name + `_status = ?, ` + name + `_started_at = ?, ` +
			name + `_finished_at = NULL, ` + name + `_error = NULL, updated_at = ? WHERE id = ?`
		args = []any{status, now, now, id}
	case StageNotStarted:
		query = `UPDATE jobs SET ` + name + `_status = ?, ` + name + `_started_at = NULL, ` +
			name + `_finished_at = NULL, ` + name + `_error = NULL, updated_at = ? WHERE id = ?`
		args = []any{status, now, id}
	default:
		query = `UPDATE jobs SET ` + name + `_status = ?, ` + name + `_finished_at = ?, ` +
			name + `_error = ?, updated_at = ? WHERE id = ?`
		args = []any{status, now, nullableString(stageErr), now, id}
	}
	if runToken != "" {
		query += ` AND run_token = ?`
		args = append(args, runToken)
	}
	return query, args, nil
}

// ResetRunningStages rewinds any ledger entries left in running back to
// not_started. Resume planning calls this so a stage interrupted by a crash
// is re-run rather than treated as in flight.
func (s *Store) ResetRunningStages(ctx context.Context, id int64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	var sets []string
	var args []any
	for _, stage := range AllStages() {
		name := string(stage)
		sets = append(sets, name+"_status = CASE "+name+"_status WHEN ? THEN ? ELSE "+name+"_status END")
		args = append(args, StageRunning, StageNotStarted)
	}
	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + `, updated_at = ? WHERE id = ?`
	args = append(args, now, id)
	if err := s.execWithoutResultRetry(ctx, query, args...); err != nil {
		return fmt.Errorf("reset running stages: %w", err)
	}
	return nil
}
