package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newCreateCommand(client *apiClient) *cobra.Command {
	var audioFlag string

	cmd := &cobra.Command{
		Use:   "create <video>",
		Short: "Submit a video for trim analysis",
		Long:  "Submit a video for trim analysis. Pass --audio to sync the video against a replacement audio track instead of its own.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			videoPath, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("resolve video path: %w", err)
			}
			audioPath := ""
			if audioFlag != "" {
				audioPath, err = filepath.Abs(audioFlag)
				if err != nil {
					return fmt.Errorf("resolve audio path: %w", err)
				}
			}

			var resp api.JobResponse
			req := api.CreateJobRequest{VideoPath: videoPath, AudioPath: audioPath}
			if err := client.postJSON(cmd.Context(), "/api/jobs", req, &resp); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Created job %s (%s)\n", resp.Job.ID, resp.Job.Status)
			if resp.Job.Error != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  error: [%s] %s\n", resp.Job.Error.Code, resp.Job.Error.Message)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&audioFlag, "audio", "", "Replacement audio track to sync against")
	return cmd
}
