package scheduler

import (
	"context"

	"github.com/google/uuid"

	"cirelay/internal/cierr"
	"cirelay/internal/logger"
	"cirelay/internal/notify"
	"cirelay/internal/store"
)

// legacyStatuses maps retired failure synonyms onto the canonical enum.
// Normalization happens once at ingress; the state machine only ever sees
// canonical statuses.
var legacyStatuses = map[string]store.JobStatus{
	"deployment-failure": store.JobStatusFailure,
	"product-failure":    store.JobStatusFailure,
	"osp-failure":        store.JobStatusFailure,
}

var validStatuses = map[store.JobStatus]bool{
	store.JobStatusNew:     true,
	store.JobStatusPreRun:  true,
	store.JobStatusRunning: true,
	store.JobStatusPostRun: true,
	store.JobStatusSuccess: true,
	store.JobStatusFailure: true,
	store.JobStatusError:   true,
	store.JobStatusKilled:  true,
}

// NormalizeStatus maps a submitted status string, including legacy synonyms,
// onto the canonical enum.
func NormalizeStatus(raw string) (store.JobStatus, error) {
	if st, ok := legacyStatuses[raw]; ok {
		return st, nil
	}
	st := store.JobStatus(raw)
	if !validStatuses[st] {
		return "", cierr.Invalid("unknown job status %q", raw)
	}
	return st, nil
}

// ApplyJobState appends a jobstate audit row and advances the job status.
// Submitting the current terminal status again is an idempotent no-op and
// returns (nil, nil); any other transition out of a terminal status is a
// Conflict. On the first transition into a terminal status, exactly one
// notification event is emitted, even under duplicate or racing submissions:
// the conditional status update inside the transaction decides the winner.
func (s *Scheduler) ApplyJobState(ctx context.Context, jobID uuid.UUID, rawStatus, comment string) (*store.JobState, error) {
	status, err := NormalizeStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	var js *store.JobState
	var job *store.Job
	var fire bool

	err = s.withRetry(ctx, func(tx store.Tx) error {
		js, fire = nil, false

		var err error
		job, err = s.getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}

		if job.Status.Terminal() {
			if status == job.Status {
				return errRollback
			}
			return cierr.Conflict("job "+jobID.String()+" is already "+string(job.Status), nil)
		}

		target := status
		// A failure reported before the run phase means the job never
		// ran; it lands in error.
		if status == store.JobStatusFailure &&
			(job.Status == store.JobStatusNew || job.Status == store.JobStatusPreRun) {
			target = store.JobStatusError
		}

		updated, err := s.store.SetJobStatusIf(ctx, tx, job.ID, target, store.LiveStatuses)
		if err != nil {
			return err
		}
		if !updated {
			// A concurrent submission won. Mirror the sequential
			// semantics: same terminal status is a no-op, anything
			// else conflicts.
			current, err := s.getJob(ctx, tx, jobID)
			if err != nil {
				return err
			}
			if current.Status == status {
				return errRollback
			}
			return cierr.Conflict("job "+jobID.String()+" is already "+string(current.Status), nil)
		}

		js = &store.JobState{
			ID:        uuid.New(),
			JobID:     job.ID,
			Status:    status,
			Comment:   comment,
			CreatedAt: s.now().UTC(),
		}
		if err := s.store.CreateJobState(ctx, tx, js); err != nil {
			return err
		}

		job.Status = target
		fire = target.Terminal()
		return nil
	})
	if err != nil {
		return nil, err
	}

	if fire {
		s.notifyFinished(ctx, job)
		s.audit.Record(ctx, "finish_job", jobID.String())
		s.metrics.RecordFinished(ctx, string(job.Status))
		logger.ForJob(s.log, job.ID.String(), job.RemoteciID.String()).
			InfoContext(ctx, "job finished", "status", job.Status)
	}

	return js, nil
}

// notifyFinished assembles and dispatches the terminal-status event. It runs
// after the transaction committed; delivery failures are logged, not returned,
// so the recorded transition stands.
func (s *Scheduler) notifyFinished(ctx context.Context, job *store.Job) {
	ev := notify.Event{Job: *job, Status: job.Status}

	if components, err := s.store.GetJobComponents(ctx, nil, job.ID); err == nil {
		ev.Components = components
	} else {
		s.log.WarnContext(ctx, "failed to load components for event", "job_id", job.ID, "error", err)
	}
	if topic, err := s.store.GetTopicByID(ctx, nil, job.TopicID); err == nil {
		ev.Topic = *topic
	}
	if remoteci, err := s.store.GetRemoteciByID(ctx, nil, job.RemoteciID); err == nil {
		ev.Remoteci = *remoteci
	}
	if states, err := s.store.ListJobStates(ctx, nil, job.ID); err == nil {
		ev.States = states
	}

	if err := s.notifier.Dispatch(ctx, ev); err != nil {
		s.log.ErrorContext(ctx, "failed to dispatch job event", "job_id", job.ID, "error", err)
	}
}
