package api

import (
	"testing"
	"time"

	"trimsync/internal/decision"
	"trimsync/internal/queue"
	"trimsync/internal/timeline"
)

func TestFromJobCarriesDecisionAndOverride(t *testing.T) {
	job := &queue.Job{
		ID:                "job-1",
		Status:            queue.StatusAwaitingReview,
		VideoPath:         "/media/in.mp4",
		AudioPath:         "/media/voice.wav",
		VideoDurationSec:  10,
		TargetDurationSec: 8,
		DeltaSec:          2,
		ProgressRatio:     1,
		CreatedAt:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := job.SetDecision(&decision.Decision{
		KeepRange:  timeline.Range{StartSec: 0, EndSec: 8},
		Strategy:   decision.StrategyOutro,
		Confidence: 0.9,
		Reasoning:  []string{"outro accepted"},
	}); err != nil {
		t.Fatalf("SetDecision failed: %v", err)
	}
	if err := job.SetOverrideRange(timeline.Range{StartSec: 0, EndSec: 8.1}); err != nil {
		t.Fatalf("SetOverrideRange failed: %v", err)
	}

	view := FromJob(job)
	if view.ID != "job-1" || view.Status != "awaiting_review" {
		t.Fatalf("unexpected view: %#v", view)
	}
	if view.Decision == nil || view.Decision.Strategy != "outro" {
		t.Fatalf("expected decision in view: %#v", view.Decision)
	}
	if view.Override == nil || view.Override.EndSec != 8.1 {
		t.Fatalf("expected override in view: %#v", view.Override)
	}
	if view.Error != nil {
		t.Fatalf("unexpected error payload: %#v", view.Error)
	}
	if view.CreatedAt == "" {
		t.Fatal("expected createdAt to be formatted")
	}
}

func TestFromJobFailedCarriesErrorPayload(t *testing.T) {
	job := &queue.Job{ID: "job-2", Status: queue.StatusFailed}
	job.SetFailed("RENDER_FAILED", "encoder crashed")

	view := FromJob(job)
	if view.Error == nil || view.Error.Code != "RENDER_FAILED" || view.Error.Message != "encoder crashed" {
		t.Fatalf("unexpected error payload: %#v", view.Error)
	}
}

func TestFromEvent(t *testing.T) {
	view := FromEvent(queue.Event{
		ID:       7,
		JobID:    "job-1",
		Type:     queue.EventProgress,
		Status:   queue.StatusRendering,
		Progress: 0.5,
	})
	if view.ID != 7 || view.Type != "progress" || view.Progress != 0.5 {
		t.Fatalf("unexpected event view: %#v", view)
	}
}
