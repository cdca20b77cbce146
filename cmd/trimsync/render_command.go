package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newRenderCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "render <job-id>",
		Short: "Approve a job's keep range and start the render",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			var resp api.JobResponse
			if err := client.postJSON(cmd.Context(), "/api/jobs/"+jobID+"/render", nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Render queued for %s (%s)\n", resp.Job.ID, resp.Job.Status)
			fmt.Fprintf(cmd.OutOrStdout(), "Follow progress with: trimsync events %s --follow\n", resp.Job.ID)
			return nil
		},
	}
}
