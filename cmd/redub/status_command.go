package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/daemonrun"
	"redub/internal/logging"
	"redub/internal/notifications"
	"redub/internal/preflight"
	"redub/internal/queue"
	"redub/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and stage health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				out := cmd.OutOrStdout()

				fmt.Fprintf(out, "Daemon running: %s\n", yesNo(daemonLockHeld(cfg)))

				health, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Jobs: %d total, %d pending, %d processing, %d awaiting review, %d failed, %d completed\n",
					health.Total, health.Pending, health.Processing, health.Review, health.Failed, health.Completed)

				stats, err := store.Stats(cmd.Context())
				if err != nil {
					return err
				}
				if rows := statusCountRows(stats); len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]string{"Status", "Count"},
						rows,
						[]columnAlignment{alignLeft, alignRight},
					))
				}

				stages, err := daemonrun.BuildStages(cmd.Context(), cfg, store, logging.NewNop(), notifications.NewService(cfg))
				if err != nil {
					return err
				}
				mgr := workflow.NewManager(cfg, store, logging.NewNop())
				mgr.ConfigureStages(stages)
				summary := mgr.Status(cmd.Context())

				names := make([]string, 0, len(summary.StageHealth))
				for name := range summary.StageHealth {
					names = append(names, name)
				}
				sort.Strings(names)
				rows := make([][]string, 0, len(names))
				for _, name := range names {
					h := summary.StageHealth[name]
					detail := h.Detail
					if h.Ready {
						detail = "ready"
					}
					rows = append(rows, []string{name, yesNo(h.Ready), detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Stage", "Ready", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))

				depRows := make([][]string, 0, 4)
				for _, dep := range preflight.CheckSystemDeps(cfg) {
					detail := dep.Detail
					if dep.Available {
						detail = dep.Command
					}
					depRows = append(depRows, []string{dep.Name, yesNo(dep.Available), detail})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Dependency", "Found", "Detail"},
					depRows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				))
				return nil
			})
		},
	}
}

func statusCountRows(stats map[queue.Status]int) [][]string {
	rows := make([][]string, 0, len(stats))
	for _, status := range queue.AllStatuses() {
		count, ok := stats[status]
		if !ok || count == 0 {
			continue
		}
		rows = append(rows, []string{string(status), fmt.Sprintf("%d", count)})
	}
	return rows
}

// daemonLockHeld reports whether another process holds the daemon lock. It
// only peeks; the lock is released immediately when probing succeeds.
func daemonLockHeld(cfg *config.Config) bool {
	if _, err := os.Stat(daemonrun.LockPath(cfg)); err != nil {
		return false
	}
	lock := daemonrun.NewLock(cfg)
	held, err := lock.TryLock()
	if err != nil || !held {
		return true
	}
	_ = lock.Unlock()
	return false
}
