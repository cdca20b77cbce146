package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newStatusCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status, queue health, and dependency availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			var status api.DaemonStatus
			if err := client.getJSON(cmd.Context(), "/api/status", &status); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Daemon: running (pid %d)\n", status.PID)
			fmt.Fprintf(cmd.OutOrStdout(), "Queue DB: %s\n", status.QueueDBPath)
			fmt.Fprintf(cmd.OutOrStdout(), "Lock file: %s\n\n", status.LockFilePath)

			healthRows := [][]string{
				{"Total", strconv.Itoa(status.Health.Total)},
				{"Queued", strconv.Itoa(status.Health.Queued)},
				{"Processing", strconv.Itoa(status.Health.Processing)},
				{"Awaiting review", strconv.Itoa(status.Health.AwaitingReview)},
				{"Completed", strconv.Itoa(status.Health.Completed)},
				{"Failed", strconv.Itoa(status.Health.Failed)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Jobs", "Count"}, healthRows))

			depRows := make([][]string, 0, len(status.Dependencies))
			for _, dep := range status.Dependencies {
				state := "ok"
				if !dep.Available {
					state = "missing"
					if dep.Optional {
						state = "missing (optional)"
					}
				}
				detail := dep.Detail
				if detail == "" {
					detail = dep.Description
				}
				depRows = append(depRows, []string{dep.Name, dep.Command, state, detail})
			}
			if len(depRows) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Dependency", "Command", "State", "Detail"}, depRows))
			}
			return nil
		},
	}
}
