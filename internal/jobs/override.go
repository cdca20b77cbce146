package jobs

import (
	"context"
	"fmt"

	"trimsync/internal/decision"
	"trimsync/internal/queue"
	"trimsync/internal/timeline"
)

// SaveOverride validates and stores a user-supplied keep range. Validation
// errors surface synchronously with their taxonomy code; the job's status is
// untouched so an override can be staged before a render or after a failed
// attempt.
func (s *Service) SaveOverride(ctx context.Context, id string, keep timeline.Range) (*queue.Job, error) {
	keep = keep.Normalize()

	job, err := s.updateJob(ctx, id, func(j *queue.Job) error {
		if validateErr := decision.ValidateOverride(keep, decision.OverrideConstraints{
			VideoDurationSec:    j.VideoDurationSec,
			TargetDurationSec:   j.TargetDurationSec,
			HasReplacementAudio: j.HasReplacementAudio(),
		}); validateErr != nil {
			return validateErr
		}
		return j.SetOverrideRange(keep)
	})
	if err != nil {
		return nil, err
	}

	s.appendJobLog(job, fmt.Sprintf("override saved keep=[%.3f,%.3f)", keep.StartSec, keep.EndSec))
	s.publish(ctx, queue.Event{
		JobID:   id,
		Type:    queue.EventLog,
		Status:  job.Status,
		Message: fmt.Sprintf("override saved: keep [%.3f, %.3f)", keep.StartSec, keep.EndSec),
	})
	return job, nil
}
