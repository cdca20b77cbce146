// Package daemon composes the trimsync services into a single-instance
// background process: job store, event bus, task pool, watch-folder ingest,
// and the HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"trimsync/internal/config"
	"trimsync/internal/deps"
	"trimsync/internal/events"
	"trimsync/internal/fileutil"
	"trimsync/internal/jobs"
	"trimsync/internal/logging"
	"trimsync/internal/queue"
	"trimsync/internal/render"
	"trimsync/internal/services/analyzer"
	"trimsync/internal/services/ffmpeg"
	"trimsync/internal/taskqueue"
	"trimsync/internal/watcher"
)

// Daemon enforces single-instance execution and owns service lifecycles.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *queue.Store
	bus    *events.Bus
	pool   *taskqueue.Pool
	jobs   *jobs.Service

	lockPath string
	lock     *flock.Flock

	api     *apiServer
	watcher *watcher.Watcher

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	QueueDBPath  string
	LockFilePath string
	Health       queue.HealthSummary
	Dependencies []deps.Status
}

// New constructs a daemon and its collaborators from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires config")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	store, err := queue.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open job store: %w", err)
	}

	bus := events.NewBus(store, logger)
	pool := taskqueue.NewPool(cfg.Workflow.Workers, logger)

	analyzerSvc := analyzer.NewFromConfig(cfg)
	renderer := render.NewOrchestrator(ffmpeg.NewCLI(ffmpeg.WithBinary(cfg.Tools.FFmpeg)), cfg.Tools.FFprobe)
	jobSvc := jobs.NewService(cfg, store, bus, pool, analyzerSvc, renderer, logger)

	lockPath := filepath.Join(cfg.Paths.LogDir, "trimsyncd.lock")
	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With(logging.String(logging.FieldComponent, "daemon")),
		store:    store,
		bus:      bus,
		pool:     pool,
		jobs:     jobSvc,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Jobs exposes the job service, mainly for tests.
func (d *Daemon) Jobs() *jobs.Service {
	return d.jobs
}

// Start acquires the instance lock and launches background services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another trimsync daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if d.api != nil {
		if err := d.api.start(d.ctx); err != nil {
			_ = d.lock.Unlock()
			d.cancel()
			return err
		}
	}

	if d.cfg.Workflow.WatchIngestEnable {
		w, err := watcher.New(d.cfg.Paths.WatchDir, d.ingest, d.logger)
		if err != nil {
			d.logger.Error("start watch-folder ingest", logging.Error(err))
		} else {
			d.watcher = w
			go func() {
				if runErr := w.Run(d.ctx); runErr != nil && !errors.Is(runErr, context.Canceled) {
					d.logger.Error("watch-folder ingest stopped", logging.Error(runErr))
				}
			}()
		}
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.String("lock", d.lockPath),
		logging.Int("workers", d.cfg.Workflow.Workers))
	return nil
}

// Stop shuts down background services and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}
	d.running.Store(false)

	if d.cancel != nil {
		d.cancel()
	}
	if d.watcher != nil {
		_ = d.watcher.Close()
	}
	if d.api != nil {
		d.api.stop()
	}
	d.pool.Close()
	d.bus.Close()
	if err := d.store.Close(); err != nil {
		d.logger.Warn("close store", logging.Error(err))
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock", logging.Error(err))
	}
	d.logger.Info("daemon stopped")
}

// Status reports runtime state for API consumers.
func (d *Daemon) Status(ctx context.Context) Status {
	health, err := d.store.Health(ctx)
	if err != nil {
		d.logger.Warn("queue health", logging.Error(err))
	}
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		QueueDBPath:  d.store.Path(),
		LockFilePath: d.lockPath,
		Health:       health,
		Dependencies: append(deps.CheckBinaries(deps.Requirements(d.cfg)), deps.CheckModel(d.cfg)),
	}
}

// ingest handles watch-folder arrivals. Files are staged into the upload
// directory before job creation so the pipeline never reads from a path the
// producer may still move or rewrite.
func (d *Daemon) ingest(ctx context.Context, videoPath, audioPath string) error {
	stagedVideo, err := fileutil.StageInto(d.cfg.Paths.UploadDir, videoPath)
	if err != nil {
		return fmt.Errorf("stage video: %w", err)
	}
	stagedAudio := ""
	if audioPath != "" {
		stagedAudio, err = fileutil.StageInto(d.cfg.Paths.UploadDir, audioPath)
		if err != nil {
			return fmt.Errorf("stage audio: %w", err)
		}
	}

	job, err := d.jobs.Create(ctx, jobs.CreateRequest{VideoPath: stagedVideo, AudioPath: stagedAudio})
	if err != nil {
		return err
	}
	d.logger.Info("ingested watch-folder job",
		logging.String(logging.FieldJobID, job.ID),
		logging.String("video", stagedVideo))
	return nil
}
