package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"

	"trimsync/internal/decision"
	"trimsync/internal/logging"
	"trimsync/internal/queue"
	"trimsync/internal/render"
	"trimsync/internal/services"
)

// progressPersistStep is the minimum ratio change before a render progress
// update is written back to the job record.
const progressPersistStep = 0.01

// ProcessAnalysis runs the analysis stage for a job: invoke the worker,
// compute a trim decision, and park the job in awaiting_review. A job that
// already failed (for example at creation) is skipped, which makes stale
// queue entries harmless.
func (s *Service) ProcessAnalysis(ctx context.Context, id string) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if current.Status == queue.StatusFailed {
		s.logger.Debug("skipping analysis for failed job",
			logging.String(logging.FieldJobID, id))
		return nil
	}

	ctx = services.WithJobID(ctx, id)
	ctx = services.WithStage(ctx, "analysis")
	logger := logging.WithContext(ctx, s.logger)

	if _, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		j.Status = queue.StatusAnalyzing
		j.ProgressRatio = 0
		j.ProgressMessage = "analyzing"
		return nil
	}); err != nil {
		return err
	}
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventStatus,
		Status:  queue.StatusAnalyzing,
		Message: "analysis started",
	})
	s.appendJobLog(current, "analysis started")

	workDir := filepath.Join(s.cfg.Paths.WorkDir, id)
	result, outPath, analyzeErr := s.analyzer.Analyze(ctx, current.VideoPath, workDir)
	if analyzeErr != nil {
		return s.failJob(ctx, id, analyzeErr, services.CodeAnalysisFailed)
	}
	logger.Info("analysis complete",
		logging.Int("speech_regions", len(result.SpeechRegions)),
		logging.Int("warnings", len(result.Warnings)))

	dec, decErr := decision.Compute(decision.Input{
		VideoDurationSec:    current.VideoDurationSec,
		TargetDurationSec:   current.TargetDurationSec,
		Analysis:            result,
		HasReplacementAudio: current.HasReplacementAudio(),
	})
	if decErr != nil {
		return s.failJob(ctx, id, decErr, services.CodeAnalysisFailed)
	}

	job, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		raw, marshalErr := json.Marshal(result)
		if marshalErr != nil {
			return fmt.Errorf("encode analysis: %w", marshalErr)
		}
		j.AnalysisJSON = string(raw)
		if setErr := j.SetDecision(dec); setErr != nil {
			return setErr
		}
		j.Status = queue.StatusAwaitingReview
		j.ProgressRatio = 1
		j.ProgressMessage = "awaiting review"
		return nil
	})
	if err != nil {
		return s.failJob(ctx, id, err, services.CodeAnalysisFailed)
	}

	if err := s.store.UpsertArtifact(ctx, queue.Artifact{
		JobID: id,
		Kind:  "analysis",
		Path:  outPath,
	}); err != nil {
		logger.Warn("register analysis artifact", logging.Error(err))
	}

	s.appendJobLog(job, fmt.Sprintf("decision strategy=%s keep=[%.3f,%.3f) confidence=%.2f",
		dec.Strategy, dec.KeepRange.StartSec, dec.KeepRange.EndSec, dec.Confidence))
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventStatus,
		Status:  queue.StatusAwaitingReview,
		Message: fmt.Sprintf("decision ready: %s (confidence %.2f)", dec.Strategy, dec.Confidence),
	})
	return nil
}

// RequestRender validates the job's effective keep range and enqueues the
// render stage. A request for a job already rendering is rejected so two
// encoders never race on the same output. A failed render attempt leaves
// the job failed but a new request is accepted, so an operator can retry
// with a fresh override.
func (s *Service) RequestRender(ctx context.Context, id string) (*queue.Job, error) {
	job, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		if j.Status == queue.StatusRendering {
			return services.NewError(services.CodeRenderFailed,
				"render: a render is already in progress for this job")
		}
		keep, keepErr := j.EffectiveKeepRange()
		if keepErr != nil {
			return keepErr
		}
		if keep == nil {
			return services.NewError(services.CodeRenderFailed,
				"render: no trim decision or override available yet")
		}
		if validateErr := decision.ValidateOverride(*keep, decision.OverrideConstraints{
			VideoDurationSec:    j.VideoDurationSec,
			TargetDurationSec:   j.TargetDurationSec,
			HasReplacementAudio: j.HasReplacementAudio(),
		}); validateErr != nil {
			return validateErr
		}
		j.Status = queue.StatusRendering
		j.ErrorCode = ""
		j.ErrorMessage = ""
		j.ProgressRatio = 0
		j.ProgressMessage = "rendering"
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.appendJobLog(job, "render requested")
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventStatus,
		Status:  queue.StatusRendering,
		Message: "render queued",
	})

	if err := s.pool.Submit("render:"+id, func(taskCtx context.Context) error {
		return s.ProcessRender(taskCtx, id)
	}); err != nil {
		return nil, s.failJob(ctx, id, err, services.CodeRenderFailed)
	}
	return job, nil
}

// ProcessRender runs the render stage: drive the encoder with the job's
// effective keep range, stream progress, verify the output, and complete
// the job.
func (s *Service) ProcessRender(ctx context.Context, id string) error {
	job, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != queue.StatusRendering {
		s.logger.Debug("skipping render for job not in rendering state",
			logging.String(logging.FieldJobID, id),
			logging.String("status", string(job.Status)))
		return nil
	}

	ctx = services.WithJobID(ctx, id)
	ctx = services.WithStage(ctx, "render")
	logger := logging.WithContext(ctx, s.logger)

	keep, err := job.EffectiveKeepRange()
	if err != nil || keep == nil {
		return s.failJob(ctx, id, services.NewError(services.CodeRenderFailed,
			"render: keep range unavailable"), services.CodeRenderFailed)
	}

	outputPath := filepath.Join(s.cfg.Paths.OutputDir, id+filepath.Ext(job.VideoPath))
	lastPersisted := -1.0
	progress := func(ratio float64) {
		s.publish(ctx, queue.Event{
			JobID:    id,
			Type:     queue.EventProgress,
			Status:   queue.StatusRendering,
			Progress: ratio,
		})
		if math.Abs(ratio-lastPersisted) < progressPersistStep && ratio != 1.0 {
			return
		}
		lastPersisted = ratio
		if _, updateErr := s.updateJob(ctx, id, func(j *queue.Job) error {
			j.ProgressRatio = ratio
			return nil
		}); updateErr != nil {
			logger.Warn("persist render progress", logging.Error(updateErr))
		}
	}

	result, renderErr := s.renderer.Render(ctx, render.Request{
		VideoPath:         job.VideoPath,
		AudioPath:         job.AudioPath,
		OutputPath:        outputPath,
		KeepRange:         *keep,
		TargetDurationSec: job.TargetDurationSec,
		Progress:          progress,
	})
	if renderErr != nil {
		return s.failJob(ctx, id, renderErr, services.CodeRenderFailed)
	}

	completed, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		j.Status = queue.StatusCompleted
		j.OutputPath = result.OutputPath
		j.ProgressRatio = 1
		j.ProgressMessage = "completed"
		return nil
	})
	if err != nil {
		return s.failJob(ctx, id, err, services.CodeRenderFailed)
	}

	if err := s.store.UpsertArtifact(ctx, queue.Artifact{
		JobID:        id,
		Kind:         "output",
		Path:         result.OutputPath,
		MetadataJSON: fmt.Sprintf(`{"strategy":%q,"durationSec":%.3f}`, result.Strategy, result.DurationSec),
	}); err != nil {
		logger.Warn("register output artifact", logging.Error(err))
	}

	s.appendJobLog(completed, fmt.Sprintf("render completed strategy=%s output=%s", result.Strategy, result.OutputPath))
	logger.Info("render complete",
		logging.String("strategy", string(result.Strategy)),
		logging.String("output", result.OutputPath))
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventComplete,
		Status:  queue.StatusCompleted,
		Message: result.OutputPath,
	})
	return nil
}
