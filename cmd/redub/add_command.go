package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/language"
	"redub/internal/notifications"
	"redub/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var targetFlag string

	cmd := &cobra.Command{
		Use:   "add <url> [url...]",
		Short: "Queue source videos for re-voicing",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()
				notifier := notifications.NewService(cfg)
				target := strings.TrimSpace(targetFlag)
				if target == "" {
					target = cfg.Pipeline.TargetLanguage
				} else {
					normalized, ok := language.Normalize(target)
					if !ok {
						return fmt.Errorf("invalid target language %q", target)
					}
					target = normalized
				}

				for _, url := range args {
					job, err := store.NewJob(cmd.Context(), url, target)
					if errors.Is(err, queue.ErrDuplicateSource) {
						fmt.Fprintf(out, "Already queued as job %d: %s\n", job.ID, url)
						continue
					}
					if err != nil {
						return fmt.Errorf("queue %s: %w", url, err)
					}
					fmt.Fprintf(out, "Queued job %d: %s\n", job.ID, url)
					if notifyErr := notifier.NotifyJobQueued(cmd.Context(), job.Title); notifyErr != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "warn: queued notification failed: %v\n", notifyErr)
					}
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&targetFlag, "language", "l", "", "Target language for the dubbed output (defaults to config)")
	return cmd
}
