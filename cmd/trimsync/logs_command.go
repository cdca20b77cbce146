package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newLogsCommand(client *apiClient) *cobra.Command {
	var tailFlag int

	cmd := &cobra.Command{
		Use:   "logs <job-id>",
		Short: "Show the tail of a job's log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs/" + args[0] + "/logs?tail=" + strconv.Itoa(tailFlag)

			var resp api.LogTailResponse
			if err := client.getJSON(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if len(resp.Lines) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No log output yet.")
				return nil
			}
			for _, line := range resp.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&tailFlag, "tail", "n", 100, "Number of trailing lines to show")
	return cmd
}
