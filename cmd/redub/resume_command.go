package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/logging"
	"redub/internal/queue"
	"redub/internal/resume"
)

func newResumeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "resume <id>",
		Short: "Rewind a job to its first incomplete stage and requeue it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				if dryRun {
					job, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %d not found", id)
					}
					plan := resume.PlanFor(job)
					if plan.NoOp {
						fmt.Fprintf(out, "Job %d is complete; nothing to resume\n", id)
						return nil
					}
					fmt.Fprintf(out, "Job %d would resume from %s (status %s, %d stages reset)\n",
						id, plan.From, plan.Status, len(plan.ResetStages))
					return nil
				}

				planner := resume.NewPlanner(store, logging.NewNop())
				plan, err := planner.Resume(cmd.Context(), id)
				if err != nil {
					return err
				}
				if plan.NoOp {
					fmt.Fprintf(out, "Job %d is complete; nothing to resume\n", id)
					return nil
				}
				fmt.Fprintf(out, "Job %d resuming from %s; start the daemon to continue processing\n", id, plan.From)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report the resume point without changing the job")
	return cmd
}
