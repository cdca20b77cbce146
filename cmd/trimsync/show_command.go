package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newShowCommand(client *apiClient) *cobra.Command {
	return &cobra.Command{
		Use:   "show <job-id>",
		Short: "Show a job's details, decision, and artifacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]

			var resp api.JobResponse
			if err := client.getJSON(cmd.Context(), "/api/jobs/"+jobID, &resp); err != nil {
				return err
			}
			job := resp.Job

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job %s\n", job.ID)
			fmt.Fprintf(out, "  Status:   %s\n", job.Status)
			fmt.Fprintf(out, "  Video:    %s (%s)\n", job.VideoPath, formatSeconds(job.VideoDurationSec))
			if job.AudioPath != "" {
				fmt.Fprintf(out, "  Audio:    %s\n", job.AudioPath)
			}
			fmt.Fprintf(out, "  Target:   %s (trim %s)\n", formatSeconds(job.TargetDurationSec), formatSeconds(job.DeltaSec))
			if job.ProgressRatio > 0 {
				fmt.Fprintf(out, "  Progress: %s", formatProgress(job.ProgressRatio))
				if job.ProgressMessage != "" {
					fmt.Fprintf(out, " — %s", job.ProgressMessage)
				}
				fmt.Fprintln(out)
			}
			if job.Error != nil {
				fmt.Fprintf(out, "  Error:    [%s] %s\n", job.Error.Code, job.Error.Message)
			}
			if job.OutputPath != "" {
				fmt.Fprintf(out, "  Output:   %s\n", job.OutputPath)
			}
			if job.LogPath != "" {
				fmt.Fprintf(out, "  Log:      %s\n", job.LogPath)
			}

			if dec := job.Decision; dec != nil {
				fmt.Fprintf(out, "\nDecision (%s, confidence %.2f)\n", dec.Strategy, dec.Confidence)
				fmt.Fprintf(out, "  Keep: %s – %s\n", formatSeconds(dec.KeepRange.StartSec), formatSeconds(dec.KeepRange.EndSec))
				for _, pr := range dec.ProtectedRanges {
					fmt.Fprintf(out, "  Protected: %s – %s\n", formatSeconds(pr.StartSec), formatSeconds(pr.EndSec))
				}
				for _, line := range dec.Reasoning {
					fmt.Fprintf(out, "  - %s\n", line)
				}
			}
			if ov := job.Override; ov != nil {
				fmt.Fprintf(out, "\nOverride: %s – %s\n", formatSeconds(ov.StartSec), formatSeconds(ov.EndSec))
			}

			var artifacts api.ArtifactListResponse
			if err := client.getJSON(cmd.Context(), "/api/jobs/"+jobID+"/artifacts", &artifacts); err == nil && len(artifacts.Artifacts) > 0 {
				rows := make([][]string, 0, len(artifacts.Artifacts))
				for _, a := range artifacts.Artifacts {
					rows = append(rows, []string{a.Kind, a.Path, a.UpdatedAt})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable([]string{"Artifact", "Path", "Updated"}, rows))
			}
			return nil
		},
	}
}
