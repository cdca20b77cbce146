package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newListCommand(client *apiClient) *cobra.Command {
	var statusFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/api/jobs"
			if statusFlag != "" {
				path += "?status=" + statusFlag
			}

			var resp api.JobListResponse
			if err := client.getJSON(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if len(resp.Jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs.")
				return nil
			}

			rows := make([][]string, 0, len(resp.Jobs))
			for _, job := range resp.Jobs {
				rows = append(rows, []string{
					job.ID,
					job.Status,
					truncatePath(job.VideoPath, 48),
					formatSeconds(job.DeltaSec),
					formatProgress(job.ProgressRatio),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Status", "Video", "Trim", "Progress"}, rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&statusFlag, "status", "", "Only show jobs with this status")
	return cmd
}
