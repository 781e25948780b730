package stage

import (
	"context"

	"redub/internal/queue"
	"redub/internal/services"
)

// Ledger is the slice of the queue store stage handlers write their
// per-stage status through.
type Ledger interface {
	SetStageGuarded(ctx context.Context, id int64, runToken string, stage queue.Stage, status queue.StageStatus, stageErr string) error
}

// RunLedgered brackets fn with running/done transitions on the job's ledger
// stage. A failing fn records the failure text on the stage and is returned
// unchanged. Ledger writes are guarded by the job's run token, so a stale run
// cannot clobber a newer owner's rows.
func RunLedgered(ctx context.Context, ledger Ledger, job *queue.Job, st queue.Stage, fn func(context.Context) error) error {
	if err := ledger.SetStageGuarded(ctx, job.ID, job.RunToken, st, queue.StageRunning, ""); err != nil {
		return err
	}
	if err := fn(ctx); err != nil {
		_ = ledger.SetStageGuarded(ctx, job.ID, job.RunToken, st, queue.StageFailed, services.Message(err))
		return err
	}
	return ledger.SetStageGuarded(ctx, job.ID, job.RunToken, st, queue.StageDone, "")
}
