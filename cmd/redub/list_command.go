package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/queue"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]queue.Status, 0, len(listStatuses))
			for _, raw := range listStatuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				statuses = append(statuses, status)
			}

			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := store.List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				if len(jobs) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				rows := make([][]string, 0, len(jobs))
				for _, job := range jobs {
					rows = append(rows, []string{
						fmt.Sprintf("%d", job.ID),
						jobTitleOrURL(job),
						string(job.Status),
						formatProgress(job),
						job.CreatedAt.Local().Format("2006-01-02 15:04"),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Progress", "Created"},
					rows,
					[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func jobTitleOrURL(job *queue.Job) string {
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	return job.SourceURL
}

func formatProgress(job *queue.Job) string {
	switch job.Status {
	case queue.StatusCompleted:
		return "done"
	case queue.StatusFailed:
		return truncate(job.ErrorMessage, 40)
	}
	if job.ProgressStage == "" && job.ProgressPercent == 0 {
		return ""
	}
	label := job.ProgressStage
	if label == "" {
		label = "Working"
	}
	return fmt.Sprintf("%s %.0f%%", label, job.ProgressPercent)
}

func truncate(value string, max int) string {
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max-1]) + "…"
}

func formatTimePtr(value *time.Time) string {
	if value == nil {
		return "-"
	}
	return value.Local().Format("2006-01-02 15:04:05")
}
