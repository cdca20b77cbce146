package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newOverrideCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "override <job-id> <start> <end>",
		Short: "Replace the proposed keep range with explicit bounds",
		Long:  "Replace the proposed keep range with explicit start and end seconds. The override is validated against the video bounds and the sync-safety rule before it is stored.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			start, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid start %q: %w", args[1], err)
			}
			end, err := strconv.ParseFloat(args[2], 64)
			if err != nil {
				return fmt.Errorf("invalid end %q: %w", args[2], err)
			}

			var resp api.JobResponse
			req := api.OverrideRequest{StartSec: start, EndSec: end}
			if err := client.postJSON(cmd.Context(), "/api/jobs/"+jobID+"/override", req, &resp); err != nil {
				return err
			}
			if ov := resp.Job.Override; ov != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Override stored for %s: keep %s – %s\n",
					resp.Job.ID, formatSeconds(ov.StartSec), formatSeconds(ov.EndSec))
			}
			return nil
		},
	}
}
