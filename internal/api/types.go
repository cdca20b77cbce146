// Package api defines the transport payloads shared by the daemon's HTTP
// server and the CLI client.
package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// RangeView is a time interval in seconds, half-open.
type RangeView struct {
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
}

// DecisionView describes the engine's trim proposal.
type DecisionView struct {
	KeepRange       RangeView   `json:"keepRange"`
	TrimNeededSec   float64     `json:"trimNeededSec"`
	Strategy        string      `json:"strategy"`
	Confidence      float64     `json:"confidence"`
	Reasoning       []string    `json:"reasoning"`
	ProtectedRanges []RangeView `json:"protectedRanges"`
}

// JobView describes a job in a transport-friendly format.
type JobView struct {
	ID                string        `json:"id"`
	Status            string        `json:"status"`
	VideoPath         string        `json:"videoPath"`
	AudioPath         string        `json:"audioPath,omitempty"`
	VideoDurationSec  float64       `json:"videoDurationSec"`
	TargetDurationSec float64       `json:"targetDurationSec"`
	DeltaSec          float64       `json:"deltaSec"`
	Decision          *DecisionView `json:"decision,omitempty"`
	Override          *RangeView    `json:"override,omitempty"`
	OutputPath        string        `json:"outputPath,omitempty"`
	Error             *ErrorPayload `json:"error,omitempty"`
	ProgressRatio     float64       `json:"progressRatio"`
	ProgressMessage   string        `json:"progressMessage,omitempty"`
	LogPath           string        `json:"logPath,omitempty"`
	CreatedAt         string        `json:"createdAt,omitempty"`
	UpdatedAt         string        `json:"updatedAt,omitempty"`
}

// ErrorPayload is the user-facing job error shape.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EventView is one job event for API consumers.
type EventView struct {
	ID        int64   `json:"id"`
	JobID     string  `json:"jobId"`
	Type      string  `json:"type"`
	Status    string  `json:"status,omitempty"`
	Progress  float64 `json:"progress,omitempty"`
	Message   string  `json:"message,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
}

// ArtifactView describes a registered job artifact.
type ArtifactView struct {
	Kind      string `json:"kind"`
	Path      string `json:"path"`
	Metadata  string `json:"metadata,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// CreateJobRequest submits a new trim job.
type CreateJobRequest struct {
	VideoPath string `json:"videoPath"`
	AudioPath string `json:"audioPath,omitempty"`
}

// OverrideRequest replaces the engine's keep range for a job.
type OverrideRequest struct {
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Job JobView `json:"job"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Jobs []JobView `json:"jobs"`
}

// EventListResponse wraps a job's durable event history.
type EventListResponse struct {
	Events []EventView `json:"events"`
}

// LogTailResponse carries the tail of a job's log file.
type LogTailResponse struct {
	Path  string   `json:"path"`
	Lines []string `json:"lines"`
}

// ArtifactListResponse wraps a job's registered artifacts.
type ArtifactListResponse struct {
	Artifacts []ArtifactView `json:"artifacts"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// HealthView aggregates job counts per lifecycle bucket.
type HealthView struct {
	Total          int `json:"total"`
	Queued         int `json:"queued"`
	Processing     int `json:"processing"`
	AwaitingReview int `json:"awaitingReview"`
	Failed         int `json:"failed"`
	Completed      int `json:"completed"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	QueueDBPath  string             `json:"queueDbPath"`
	LockFilePath string             `json:"lockFilePath"`
	Health       HealthView         `json:"health"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
