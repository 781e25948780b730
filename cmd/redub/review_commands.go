package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/queue"
	"redub/internal/transcript"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "review [id]",
		Short: "List jobs awaiting review, or print one job's script",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				if len(args) == 1 {
					id, err := parseJobID(args[0])
					if err != nil {
						return err
					}
					job, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if job == nil {
						return fmt.Errorf("job %d not found", id)
					}
					if strings.TrimSpace(job.ScriptText) == "" {
						return fmt.Errorf("job %d has no script yet", id)
					}
					fmt.Fprintln(out, job.ScriptText)
					return nil
				}

				jobs, err := store.JobsByStatus(cmd.Context(), queue.StatusAwaitingReview)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(out, "No jobs awaiting review")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						jobTitleOrURL(job),
						string(job.ReviewStatus),
						fmt.Sprintf("%d words", transcript.WordCount(job.ScriptText)),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"ID", "Title", "Review", "Script"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
				))
				fmt.Fprintln(out, "Approve with `redub approve <id>` (optionally --script edited.txt), or `redub reject <id>`.")
				return nil
			})
		},
	}
}

func newApproveCommand(ctx *commandContext) *cobra.Command {
	var scriptPath string
	var note string

	cmd := &cobra.Command{
		Use:   "approve <id>",
		Short: "Approve a reviewed script and release the job to synthesis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if job.Status != queue.StatusAwaitingReview {
					return fmt.Errorf("job %d is %s, not awaiting review", id, job.Status)
				}

				if path := strings.TrimSpace(scriptPath); path != "" {
					edited, err := os.ReadFile(path)
					if err != nil {
						return fmt.Errorf("read edited script: %w", err)
					}
					if strings.TrimSpace(string(edited)) == "" {
						return fmt.Errorf("edited script %s is empty", path)
					}
					job.ScriptText = string(edited)
					if job.ScriptFile != "" {
						if writeErr := os.WriteFile(job.ScriptFile, edited, 0o644); writeErr != nil {
							fmt.Fprintf(cmd.ErrOrStderr(), "warn: update script file: %v\n", writeErr)
						}
					}
				}

				job.Status = queue.StatusScripted
				job.ReviewStatus = queue.ReviewApproved
				job.ReviewNote = strings.TrimSpace(note)
				job.HumanEdited = true
				job.SetProgress("Scripting", "Script approved", 100)
				if err := store.Update(cmd.Context(), job); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d approved; synthesis will pick it up\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&scriptPath, "script", "", "Replace the script text with the contents of this file")
	cmd.Flags().StringVar(&note, "note", "", "Optional review note")
	return cmd
}

func newRejectCommand(ctx *commandContext) *cobra.Command {
	var note string
	var revise bool

	cmd := &cobra.Command{
		Use:   "reject <id>",
		Short: "Reject a script (or send it back for regeneration with --revise)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := store.GetByID(cmd.Context(), id)
				if err != nil {
					return err
				}
				if job == nil {
					return fmt.Errorf("job %d not found", id)
				}
				if job.Status != queue.StatusAwaitingReview {
					return fmt.Errorf("job %d is %s, not awaiting review", id, job.Status)
				}

				job.ReviewNote = strings.TrimSpace(note)
				if revise {
					// Back to the script lane for another pass; the gate
					// stays in place because HumanEdited remains false.
					job.ReviewStatus = queue.ReviewNeedsRevision
					job.Status = queue.StatusEnhanced
					job.ScriptText = ""
					job.ScriptFile = ""
					if err := store.SetStage(cmd.Context(), job.ID, queue.StageScript, queue.StageNotStarted, ""); err != nil {
						return err
					}
					job.SetProgress("Scripting", "Script sent back for revision", 0)
					if err := store.Update(cmd.Context(), job); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Job %d sent back for script regeneration\n", id)
					return nil
				}

				job.ReviewStatus = queue.ReviewRejected
				job.SetFailed("Script rejected during review")
				if err := store.Update(cmd.Context(), job); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %d rejected\n", id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Optional review note")
	cmd.Flags().BoolVar(&revise, "revise", false, "Regenerate the script instead of retiring the job")
	return cmd
}
