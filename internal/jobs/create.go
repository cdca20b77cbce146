package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"trimsync/internal/logging"
	"trimsync/internal/queue"
	"trimsync/internal/services"
)

// CreateRequest describes a new trim job.
type CreateRequest struct {
	// VideoPath is the source video to trim.
	VideoPath string
	// AudioPath optionally supplies a replacement audio track whose
	// duration becomes the trim target.
	AudioPath string
}

// Create probes the inputs, persists a new job, and enqueues analysis.
// Without replacement audio the target duration equals the video duration
// (zero trim). With replacement audio not shorter than the video the job is
// created already failed with AUDIO_LONGER_THAN_VIDEO.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*queue.Job, error) {
	videoPath := strings.TrimSpace(req.VideoPath)
	if videoPath == "" {
		return nil, fmt.Errorf("create job: video path required")
	}
	audioPath := strings.TrimSpace(req.AudioPath)

	videoDuration, err := s.probe(ctx, s.cfg.Tools.FFprobe, videoPath)
	if err != nil {
		return nil, fmt.Errorf("create job: probe video: %w", err)
	}
	targetDuration := videoDuration
	if audioPath != "" {
		targetDuration, err = s.probe(ctx, s.cfg.Tools.FFprobe, audioPath)
		if err != nil {
			return nil, fmt.Errorf("create job: probe audio: %w", err)
		}
	}
	delta := videoDuration - targetDuration

	id := uuid.NewString()
	job := &queue.Job{
		ID:                id,
		Status:            queue.StatusQueued,
		VideoPath:         videoPath,
		AudioPath:         audioPath,
		VideoDurationSec:  videoDuration,
		TargetDurationSec: targetDuration,
		DeltaSec:          delta,
		LogPath:           s.cfg.JobLogPath(id),
	}
	if err := s.store.Insert(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	s.appendJobLog(job, fmt.Sprintf("created video=%s audio=%s video_sec=%.3f target_sec=%.3f",
		videoPath, audioPath, videoDuration, targetDuration))
	s.logger.Info("job created",
		logging.String(logging.FieldJobID, id),
		logging.Float64("video_sec", videoDuration),
		logging.Float64("target_sec", targetDuration),
		logging.Bool("replacement_audio", job.HasReplacementAudio()))

	// Replacement audio must be strictly shorter than the video or no trim
	// can satisfy it; surface it now rather than after a wasted analysis
	// pass. The decision engine re-asserts this with a small probe
	// tolerance as a backstop.
	if job.HasReplacementAudio() && delta <= 0 {
		failErr := services.NewError(services.CodeAudioLongerThanVideo,
			fmt.Sprintf("replacement audio (%.3fs) is not shorter than the video (%.3fs)", targetDuration, videoDuration))
		_ = s.failJob(ctx, id, failErr, services.CodeAudioLongerThanVideo)
		return s.Get(ctx, id)
	}

	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventStatus,
		Status:  queue.StatusQueued,
		Message: "job created",
	})

	if err := s.pool.Submit("analysis:"+id, func(taskCtx context.Context) error {
		return s.ProcessAnalysis(taskCtx, id)
	}); err != nil {
		return nil, s.failJob(ctx, id, err, services.CodeAnalysisFailed)
	}
	return job, nil
}
