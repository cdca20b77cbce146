package queue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"trimsync/internal/decision"
	"trimsync/internal/timeline"
)

// Status represents the lifecycle of a job.
type Status string

const (
	StatusQueued         Status = "queued"
	StatusAnalyzing      Status = "analyzing"
	StatusAwaitingReview Status = "awaiting_review"
	StatusRendering      Status = "rendering"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
)

var allStatuses = []Status{
	StatusQueued,
	StatusAnalyzing,
	StatusAwaitingReview,
	StatusRendering,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var processingStatuses = map[Status]struct{}{
	StatusAnalyzing: {},
	StatusRendering: {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsProcessing reports whether a status reflects an in-flight stage.
func IsProcessing(status Status) bool {
	_, ok := processingStatuses[status]
	return ok
}

// IsTerminal reports whether a status ends the current pipeline attempt.
// Failed is terminal per attempt only: a completed or failed job may still
// accept a new render request.
func IsTerminal(status Status) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Job is a trim job persisted in SQLite.
type Job struct {
	ID                string
	Status            Status
	VideoPath         string
	AudioPath         string
	VideoDurationSec  float64
	TargetDurationSec float64
	DeltaSec          float64
	AnalysisJSON      string
	DecisionJSON      string
	OverrideJSON      string
	OutputPath        string
	ErrorCode         string
	ErrorMessage      string
	ProgressRatio     float64
	ProgressMessage   string
	LogPath           string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// HasReplacementAudio reports whether a replacement audio track was uploaded.
func (j *Job) HasReplacementAudio() bool {
	return strings.TrimSpace(j.AudioPath) != ""
}

// Decision decodes the stored trim decision, if any.
func (j *Job) Decision() (*decision.Decision, error) {
	if strings.TrimSpace(j.DecisionJSON) == "" {
		return nil, nil
	}
	var dec decision.Decision
	if err := json.Unmarshal([]byte(j.DecisionJSON), &dec); err != nil {
		return nil, fmt.Errorf("decode decision: %w", err)
	}
	return &dec, nil
}

// SetDecision stores a trim decision onto the job record.
func (j *Job) SetDecision(dec *decision.Decision) error {
	if dec == nil {
		j.DecisionJSON = ""
		return nil
	}
	data, err := json.Marshal(dec)
	if err != nil {
		return fmt.Errorf("encode decision: %w", err)
	}
	j.DecisionJSON = string(data)
	return nil
}

// OverrideRange decodes the stored override keep range, if any.
func (j *Job) OverrideRange() (*timeline.Range, error) {
	if strings.TrimSpace(j.OverrideJSON) == "" {
		return nil, nil
	}
	var r timeline.Range
	if err := json.Unmarshal([]byte(j.OverrideJSON), &r); err != nil {
		return nil, fmt.Errorf("decode override: %w", err)
	}
	return &r, nil
}

// SetOverrideRange stores an override keep range onto the job record.
func (j *Job) SetOverrideRange(r timeline.Range) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode override: %w", err)
	}
	j.OverrideJSON = string(data)
	return nil
}

// EffectiveKeepRange resolves the range the renderer must honor: the user
// override when present, otherwise the engine's decision.
func (j *Job) EffectiveKeepRange() (*timeline.Range, error) {
	if override, err := j.OverrideRange(); err != nil {
		return nil, err
	} else if override != nil {
		return override, nil
	}
	dec, err := j.Decision()
	if err != nil {
		return nil, err
	}
	if dec == nil {
		return nil, nil
	}
	keep := dec.KeepRange
	return &keep, nil
}

// SetFailed marks the job as failed with the given error code and message.
func (j *Job) SetFailed(code, message string) {
	j.Status = StatusFailed
	j.ErrorCode = code
	j.ErrorMessage = message
	j.ProgressMessage = message
}

// EventType classifies entries in a job's event log.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventLog      EventType = "log"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// Event is one entry in a job's durable, append-only event log. Events are
// ordered by arrival per job and replayed to late subscribers.
type Event struct {
	ID        int64     `json:"id"`
	JobID     string    `json:"jobId"`
	Type      EventType `json:"type"`
	Status    Status    `json:"status,omitempty"`
	Progress  float64   `json:"progress,omitempty"`
	Message   string    `json:"message,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// Artifact is a named file produced for a job (analysis result, output).
type Artifact struct {
	JobID        string
	Kind         string
	Path         string
	MetadataJSON string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total          int
	Queued         int
	Processing     int
	AwaitingReview int
	Failed         int
	Completed      int
}
