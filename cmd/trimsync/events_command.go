package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"trimsync/internal/api"
)

func newEventsCommand(client *apiClient) *cobra.Command {
	var followFlag bool

	cmd := &cobra.Command{
		Use:   "events <job-id>",
		Short: "Show a job's event history, optionally following live",
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			if followFlag {
				return followEvents(cmd, client, jobID)
			}

			var resp api.EventListResponse
			if err := client.getJSON(cmd.Context(), "/api/jobs/"+jobID+"/events", &resp); err != nil {
				return err
			}
			for _, ev := range resp.Events {
				printEvent(cmd, ev)
			}
			return nil
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().BoolVarP(&followFlag, "follow", "f", false, "Stream events as they happen")
	return cmd
}

// followEvents consumes the daemon's SSE stream until the job reaches a
// terminal status or the context is cancelled.
func followEvents(cmd *cobra.Command, client *apiClient, jobID string) error {
	url := client.base + "/api/jobs/" + jobID + "/events?follow=1"
	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := client.streaming().Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s: %w", client.base, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("daemon returned %s", resp.Status)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		payload, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		var ev api.EventView
		if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &ev); err != nil {
			continue
		}
		printEvent(cmd, ev)
		if ev.Status == "completed" || ev.Status == "failed" {
			return nil
		}
	}
	return scanner.Err()
}

func printEvent(cmd *cobra.Command, ev api.EventView) {
	out := cmd.OutOrStdout()
	switch {
	case ev.Type == "progress":
		fmt.Fprintf(out, "%s  %-12s %s %s\n", ev.CreatedAt, ev.Type, formatProgress(ev.Progress), ev.Message)
	case ev.Message != "":
		fmt.Fprintf(out, "%s  %-12s %s\n", ev.CreatedAt, ev.Type, ev.Message)
	case ev.Status != "":
		fmt.Fprintf(out, "%s  %-12s status=%s\n", ev.CreatedAt, ev.Type, ev.Status)
	default:
		fmt.Fprintf(out, "%s  %s\n", ev.CreatedAt, ev.Type)
	}
}
