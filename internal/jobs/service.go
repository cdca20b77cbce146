// Package jobs owns the job lifecycle: creation, the analysis and render
// stages, override handling, and event emission. All mutation of a job
// record funnels through this service so concurrent stages and API calls
// never clobber each other.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trimsync/internal/analysis"
	"trimsync/internal/config"
	"trimsync/internal/events"
	"trimsync/internal/logging"
	"trimsync/internal/media/ffprobe"
	"trimsync/internal/queue"
	"trimsync/internal/render"
	"trimsync/internal/services"
	"trimsync/internal/taskqueue"
)

// Analyzer runs the external analysis worker for a video.
type Analyzer interface {
	Analyze(ctx context.Context, videoPath, workDir string) (*analysis.Result, string, error)
}

// Renderer executes a trim render and verifies its output.
type Renderer interface {
	Render(ctx context.Context, req render.Request) (*render.Result, error)
}

// DurationProber reads a media file's duration in seconds.
type DurationProber func(ctx context.Context, binary, path string) (float64, error)

// Service coordinates job state, pipeline stages, and event delivery.
type Service struct {
	cfg      *config.Config
	store    *queue.Store
	bus      *events.Bus
	pool     *taskqueue.Pool
	analyzer Analyzer
	renderer Renderer
	probe    DurationProber
	logger   *slog.Logger

	locks sync.Map // job id -> *sync.Mutex
}

// NewService wires the job service from its collaborators.
func NewService(
	cfg *config.Config,
	store *queue.Store,
	bus *events.Bus,
	pool *taskqueue.Pool,
	analyzer Analyzer,
	renderer Renderer,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		bus:      bus,
		pool:     pool,
		analyzer: analyzer,
		renderer: renderer,
		probe:    ffprobe.Duration,
		logger:   logger.With(logging.String(logging.FieldComponent, "jobs")),
	}
}

// WithDurationProber sets a custom duration probe (for testing).
func (s *Service) WithDurationProber(probe DurationProber) {
	s.probe = probe
}

// Get returns a job or a JOB_NOT_FOUND error.
func (s *Service) Get(ctx context.Context, id string) (*queue.Job, error) {
	job, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.NewError(services.CodeJobNotFound, fmt.Sprintf("job %s not found", id))
	}
	return job, nil
}

// List returns jobs, optionally filtered by status, newest first.
func (s *Service) List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error) {
	return s.store.List(ctx, statuses...)
}

// Health reports aggregate queue counts.
func (s *Service) Health(ctx context.Context) (queue.HealthSummary, error) {
	return s.store.Health(ctx)
}

// Events returns the durable event history for a job after the given ID.
func (s *Service) Events(ctx context.Context, id string, afterID int64) ([]queue.Event, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.EventsByJobSince(ctx, id, afterID)
}

// Subscribe attaches a live event subscription for a job, replaying the
// durable history past afterID first.
func (s *Service) Subscribe(ctx context.Context, id string, afterID int64) (*events.Subscription, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.bus.Subscribe(ctx, id, afterID)
}

// Artifacts lists the files registered for a job.
func (s *Service) Artifacts(ctx context.Context, id string) ([]queue.Artifact, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ArtifactsByJob(ctx, id)
}

// lockFor serializes updates for a single job id.
func (s *Service) lockFor(id string) *sync.Mutex {
	value, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return value.(*sync.Mutex)
}

// updateJob applies a mutation to the current job record under the per-job
// lock: read, mutate, write.
func (s *Service) updateJob(ctx context.Context, id string, mutate func(*queue.Job) error) (*queue.Job, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

// publish appends a durable event and broadcasts it. Delivery problems are
// logged, never fatal to the pipeline.
func (s *Service) publish(ctx context.Context, event queue.Event) {
	if _, err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("publish event",
			logging.String(logging.FieldJobID, event.JobID),
			logging.Error(err))
	}
}

// appendJobLog writes one timestamped line to the job's durable log file.
func (s *Service) appendJobLog(job *queue.Job, message string) {
	if job == nil || job.LogPath == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(job.LogPath), 0o755); err != nil {
		s.logger.Warn("job log dir", logging.Error(err))
		return
	}
	f, err := os.OpenFile(job.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		s.logger.Warn("job log open", logging.Error(err))
		return
	}
	defer f.Close()
	fmt.Fprintf(f, "%s %s\n", time.Now().UTC().Format(time.RFC3339), message)
}

// failJob marks a job failed with the taxonomy code extracted from err,
// persists the transition, and emits a final error event.
func (s *Service) failJob(ctx context.Context, id string, stageErr error, fallback services.Code) error {
	code := services.CodeOf(stageErr, fallback)
	message := services.MessageOf(stageErr)

	job, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		j.SetFailed(string(code), message)
		return nil
	})
	if err != nil {
		s.logger.Error("persist failure state",
			logging.String(logging.FieldJobID, id),
			logging.Error(err))
		return stageErr
	}

	s.appendJobLog(job, fmt.Sprintf("failed [%s]: %s", code, message))
	s.logger.Error("job failed",
		logging.String(logging.FieldJobID, id),
		logging.String("code", string(code)),
		logging.Error(stageErr))
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventError,
		Status:  queue.StatusFailed,
		Message: fmt.Sprintf("[%s] %s", code, message),
	})
	return stageErr
}
