package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/language"
	"redub/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var withScript bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Display one job with its stage ledger",
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
				states, err := store.StageStates(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, renderKeyValues(jobDetailPairs(job)))
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Status", "Started", "Finished", "Error"},
					stageLedgerRows(states),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
				))
				if withScript && strings.TrimSpace(job.ScriptText) != "" {
					fmt.Fprintln(out)
					fmt.Fprintln(out, job.ScriptText)
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&withScript, "script", false, "Print the generated script text")
	return cmd
}

func jobDetailPairs(job *queue.Job) [][2]string {
	pairs := [][2]string{
		{"ID", fmt.Sprintf("%d", job.ID)},
		{"Title", jobTitleOrURL(job)},
		{"Source", job.SourceURL},
		{"Status", string(job.Status)},
		{"Target language", language.DisplayName(job.TargetLanguage)},
		{"Progress", formatProgress(job)},
		{"Human edited", yesNo(job.HumanEdited)},
		{"Created", job.CreatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Updated", job.UpdatedAt.Local().Format("2006-01-02 15:04:05")},
		{"Heartbeat", formatTimePtr(job.LastHeartbeat)},
	}
	if job.ReviewStatus != queue.ReviewNone {
		pairs = append(pairs, [2]string{"Review", string(job.ReviewStatus)})
	}
	if note := strings.TrimSpace(job.ReviewNote); note != "" {
		pairs = append(pairs, [2]string{"Review note", note})
	}
	if job.VideoFile != "" {
		pairs = append(pairs, [2]string{"Video file", job.VideoFile})
	}
	if job.SpeechFile != "" {
		pairs = append(pairs, [2]string{"Speech file", job.SpeechFile})
		pairs = append(pairs, [2]string{"Speech speed", fmt.Sprintf("%.2f", job.SpeechSpeed)})
	}
	if job.FinalFile != "" {
		pairs = append(pairs, [2]string{"Final file", job.FinalFile})
	}
	if job.PublishedURL != "" {
		pairs = append(pairs, [2]string{"Published", job.PublishedURL})
	}
	if note := strings.TrimSpace(job.TranscriptionNote); note != "" {
		pairs = append(pairs, [2]string{"Transcription note", note})
	}
	for _, warning := range strings.Split(job.Warnings, "\n") {
		if warning = strings.TrimSpace(warning); warning != "" {
			pairs = append(pairs, [2]string{"Warning", warning})
		}
	}
	if msg := strings.TrimSpace(job.ErrorMessage); msg != "" {
		pairs = append(pairs, [2]string{"Error", msg})
	}
	return pairs
}

func stageLedgerRows(states map[queue.Stage]queue.StageState) [][]string {
	rows := make([][]string, 0, len(states))
	for _, st := range queue.AllStages() {
		state, ok := states[st]
		if !ok {
			continue
		}
		rows = append(rows, []string{
			string(st),
			string(state.Status),
			formatTimePtr(state.StartedAt),
			formatTimePtr(state.FinishedAt),
			truncate(state.Error, 60),
		})
	}
	return rows
}

func parseJobID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", raw)
	}
	return id, nil
}
