package api

import (
	"time"

	"trimsync/internal/decision"
	"trimsync/internal/queue"
	"trimsync/internal/timeline"
)

// FromJob converts a persisted job into its transport view. Decode problems
// in stored JSON columns degrade to an absent field rather than failing the
// whole response.
func FromJob(job *queue.Job) JobView {
	view := JobView{
		ID:                job.ID,
		Status:            string(job.Status),
		VideoPath:         job.VideoPath,
		AudioPath:         job.AudioPath,
		VideoDurationSec:  job.VideoDurationSec,
		TargetDurationSec: job.TargetDurationSec,
		DeltaSec:          job.DeltaSec,
		OutputPath:        job.OutputPath,
		ProgressRatio:     job.ProgressRatio,
		ProgressMessage:   job.ProgressMessage,
		LogPath:           job.LogPath,
		CreatedAt:         formatTime(job.CreatedAt),
		UpdatedAt:         formatTime(job.UpdatedAt),
	}
	if dec, err := job.Decision(); err == nil && dec != nil {
		view.Decision = fromDecision(dec)
	}
	if override, err := job.OverrideRange(); err == nil && override != nil {
		rangeView := fromRange(*override)
		view.Override = &rangeView
	}
	if job.ErrorCode != "" || job.ErrorMessage != "" {
		view.Error = &ErrorPayload{Code: job.ErrorCode, Message: job.ErrorMessage}
	}
	return view
}

// FromJobs converts a job list.
func FromJobs(items []*queue.Job) []JobView {
	views := make([]JobView, 0, len(items))
	for _, job := range items {
		views = append(views, FromJob(job))
	}
	return views
}

// FromEvent converts a durable event into its transport view.
func FromEvent(event queue.Event) EventView {
	return EventView{
		ID:        event.ID,
		JobID:     event.JobID,
		Type:      string(event.Type),
		Status:    string(event.Status),
		Progress:  event.Progress,
		Message:   event.Message,
		CreatedAt: formatTime(event.CreatedAt),
	}
}

// FromEvents converts an event list.
func FromEvents(items []queue.Event) []EventView {
	views := make([]EventView, 0, len(items))
	for _, event := range items {
		views = append(views, FromEvent(event))
	}
	return views
}

// FromArtifact converts a registered artifact into its transport view.
func FromArtifact(artifact queue.Artifact) ArtifactView {
	return ArtifactView{
		Kind:      artifact.Kind,
		Path:      artifact.Path,
		Metadata:  artifact.MetadataJSON,
		UpdatedAt: formatTime(artifact.UpdatedAt),
	}
}

// FromHealth converts queue health counts.
func FromHealth(health queue.HealthSummary) HealthView {
	return HealthView{
		Total:          health.Total,
		Queued:         health.Queued,
		Processing:     health.Processing,
		AwaitingReview: health.AwaitingReview,
		Failed:         health.Failed,
		Completed:      health.Completed,
	}
}

func fromDecision(dec *decision.Decision) *DecisionView {
	view := &DecisionView{
		KeepRange:     fromRange(dec.KeepRange),
		TrimNeededSec: dec.TrimNeededSec,
		Strategy:      string(dec.Strategy),
		Confidence:    dec.Confidence,
		Reasoning:     append([]string(nil), dec.Reasoning...),
	}
	for _, r := range dec.ProtectedRanges {
		view.ProtectedRanges = append(view.ProtectedRanges, fromRange(r))
	}
	return view
}

func fromRange(r timeline.Range) RangeView {
	return RangeView{StartSec: r.StartSec, EndSec: r.EndSec}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(dateTimeFormat)
}
