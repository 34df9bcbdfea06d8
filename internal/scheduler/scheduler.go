// Package scheduler implements job scheduling and component resolution:
// topic resolution, component selection, stale-job reaping and the job
// state machine.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cirelay/internal/audit"
	"cirelay/internal/cierr"
	"cirelay/internal/logger"
	"cirelay/internal/notify"
	"cirelay/internal/observability"
	"cirelay/internal/query"
	"cirelay/internal/store"
)

// DefaultStaleAfter is how old a live job must be before scheduling reaps it.
const DefaultStaleAfter = 24 * time.Hour

// lockRetries bounds retries on serialization and deadlock failures.
const lockRetries = 3

// Clock returns the current time. Injectable for deterministic tests.
type Clock func() time.Time

// Store combines the repositories the scheduler needs. All writes go through
// a single transaction obtained from BeginTx.
type Store interface {
	BeginTx(ctx context.Context) (store.Tx, error)
	store.TeamStore
	store.TopicStore
	store.ComponentStore
	store.RemoteciStore
	store.PipelineStore
	store.JobStore
	store.JobStateStore
}

// Options tunes scheduler behavior. Zero values select the defaults.
type Options struct {
	Clock      Clock
	Notifier   notify.Dispatcher
	Audit      audit.Sink
	Metrics    *observability.SchedulerMetrics
	StaleAfter time.Duration
	// AllowPartial lets selection skip component types with no active
	// component instead of failing the whole request.
	AllowPartial bool
}

// Scheduler orchestrates job scheduling against the component catalog.
type Scheduler struct {
	store        Store
	log          *slog.Logger
	now          Clock
	notifier     notify.Dispatcher
	audit        audit.Sink
	metrics      *observability.SchedulerMetrics
	staleAfter   time.Duration
	allowPartial bool
}

// New creates a Scheduler.
func New(s Store, log *slog.Logger, opts Options) *Scheduler {
	sched := &Scheduler{
		store:        s,
		log:          log,
		now:          opts.Clock,
		notifier:     opts.Notifier,
		audit:        opts.Audit,
		metrics:      opts.Metrics,
		staleAfter:   opts.StaleAfter,
		allowPartial: opts.AllowPartial,
	}
	if sched.now == nil {
		sched.now = time.Now
	}
	if sched.notifier == nil {
		sched.notifier = &notify.LogDispatcher{Log: log}
	}
	if sched.audit == nil {
		sched.audit = &audit.LogSink{Log: log}
	}
	if sched.staleAfter == 0 {
		sched.staleAfter = DefaultStaleAfter
	}
	return sched
}

// ScheduleRequest is one agent's request for work.
type ScheduleRequest struct {
	RemoteciID       uuid.UUID
	TopicID          uuid.UUID
	TopicIDSecondary *uuid.UUID
	PipelineID       *uuid.UUID
	Name             string
	ComponentIDs     []uuid.UUID
	// ComponentTypes overrides the topic's component_types when non-nil.
	ComponentTypes []string
	// ComponentsQuery narrows latest-per-type selection, in the filter
	// grammar of the query package.
	ComponentsQuery string
	DryRun          bool
	UserAgent       string
	ClientVersion   string
}

// Schedule resolves the topic, selects components, reaps stale jobs for the
// remoteci and creates the job bound to the selected components, all in one
// transaction. With DryRun set it returns the resolved components and a nil
// job without touching storage.
func (s *Scheduler) Schedule(ctx context.Context, req ScheduleRequest) (*store.Job, []store.Component, error) {
	var filter query.Expr
	if req.ComponentsQuery != "" {
		var err error
		filter, err = query.Parse(req.ComponentsQuery)
		if err != nil {
			return nil, nil, err
		}
	}

	var job *store.Job
	var components []store.Component

	err := s.withRetry(ctx, func(tx store.Tx) error {
		remoteci, team, err := s.validateRemoteci(ctx, tx, req.RemoteciID)
		if err != nil {
			return err
		}

		topic, err := s.resolveActiveTopic(ctx, tx, req.TopicID, team)
		if err != nil {
			return err
		}

		if req.PipelineID != nil {
			if err := s.validatePipeline(ctx, tx, *req.PipelineID, team); err != nil {
				return err
			}
		}

		// Reap before reading components so the new job and the reaped
		// lineage observe the same snapshot. The remoteci row lock
		// serializes concurrent schedule calls for this agent. Dry runs
		// take no lock and write nothing.
		if !req.DryRun {
			if err := s.store.LockRemoteci(ctx, tx, remoteci.ID); err != nil {
				return err
			}
			if _, err := s.reapStaleJobs(ctx, tx, remoteci.ID); err != nil {
				return err
			}
		}

		opts, err := s.selectOptionsFor(ctx, tx, team, req.ComponentIDs, req.ComponentTypes, filter)
		if err != nil {
			return err
		}
		components, err = s.SelectComponents(ctx, tx, topic, team, opts)
		if err != nil {
			return err
		}

		if req.TopicIDSecondary != nil {
			secondary, err := s.resolveActiveTopic(ctx, tx, *req.TopicIDSecondary, team)
			if err != nil {
				return err
			}
			// The secondary topic resolves on its own declared types; pins
			// and the type override only apply to the primary.
			secondaryOpts := opts
			secondaryOpts.componentIDs = nil
			secondaryOpts.types = nil
			secondaryCmpts, err := s.SelectComponents(ctx, tx, secondary, team, secondaryOpts)
			if err != nil {
				return err
			}
			// Types live in separate topics, so the merged set cannot
			// collide; the snapshot keeps primary components first.
			components = append(components, secondaryCmpts...)
		}

		if req.DryRun {
			job = nil
			return errRollback
		}

		job, err = s.insertJob(ctx, tx, &store.Job{
			Name:             req.Name,
			RemoteciID:       remoteci.ID,
			TeamID:           team.ID,
			TopicID:          topic.ID,
			TopicIDSecondary: req.TopicIDSecondary,
			PipelineID:       req.PipelineID,
			UserAgent:        req.UserAgent,
			ClientVersion:    req.ClientVersion,
		}, components)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if req.DryRun {
		return nil, components, nil
	}

	s.audit.Record(ctx, "schedule_job", req.RemoteciID.String())
	s.metrics.RecordScheduled(ctx)
	logger.ForJob(s.log, job.ID.String(), job.RemoteciID.String()).
		InfoContext(ctx, "job scheduled", "topic_id", job.TopicID, "components", len(components))
	return job, components, nil
}

// CreateRequest is the explicit-components form used by agents that resolve
// components themselves.
type CreateRequest struct {
	RemoteciID    uuid.UUID
	TopicID       uuid.UUID
	ComponentIDs  []uuid.UUID
	Name          string
	PipelineID    *uuid.UUID
	UserAgent     string
	ClientVersion string
}

// Create creates a job bound to explicitly supplied components. It performs
// the same remoteci/topic checks and stale-job reaping as Schedule.
func (s *Scheduler) Create(ctx context.Context, req CreateRequest) (*store.Job, error) {
	if len(req.ComponentIDs) == 0 {
		return nil, cierr.Invalid("components_ids must not be empty")
	}

	var job *store.Job
	err := s.withRetry(ctx, func(tx store.Tx) error {
		remoteci, team, err := s.validateRemoteci(ctx, tx, req.RemoteciID)
		if err != nil {
			return err
		}
		topic, err := s.resolveActiveTopic(ctx, tx, req.TopicID, team)
		if err != nil {
			return err
		}
		if req.PipelineID != nil {
			if err := s.validatePipeline(ctx, tx, *req.PipelineID, team); err != nil {
				return err
			}
		}

		if err := s.store.LockRemoteci(ctx, tx, remoteci.ID); err != nil {
			return err
		}
		if _, err := s.reapStaleJobs(ctx, tx, remoteci.ID); err != nil {
			return err
		}

		opts, err := s.selectOptionsFor(ctx, tx, team, req.ComponentIDs, nil, nil)
		if err != nil {
			return err
		}
		components, err := s.SelectComponents(ctx, tx, topic, team, opts)
		if err != nil {
			return err
		}

		job, err = s.insertJob(ctx, tx, &store.Job{
			Name:          req.Name,
			RemoteciID:    remoteci.ID,
			TeamID:        team.ID,
			TopicID:       topic.ID,
			PipelineID:    req.PipelineID,
			UserAgent:     req.UserAgent,
			ClientVersion: req.ClientVersion,
		}, components)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "create_job", req.RemoteciID.String())
	s.metrics.RecordScheduled(ctx)
	return job, nil
}

// Upgrade schedules a new job against the next topic in the upgrade chain of
// the given job's topic, linking the two via previous_job_id.
func (s *Scheduler) Upgrade(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	var job *store.Job
	err := s.withRetry(ctx, func(tx store.Tx) error {
		prior, err := s.getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		remoteci, team, err := s.validateRemoteci(ctx, tx, prior.RemoteciID)
		if err != nil {
			return err
		}

		current, err := s.ResolveTopic(ctx, tx, prior.TopicID)
		if err != nil {
			return err
		}
		if current.NextTopicID == nil {
			return cierr.PreconditionFailed("topic %s has no next topic to upgrade to", current.Name)
		}
		next, err := s.resolveActiveTopic(ctx, tx, *current.NextTopicID, team)
		if err != nil {
			return err
		}

		if err := s.store.LockRemoteci(ctx, tx, remoteci.ID); err != nil {
			return err
		}
		if _, err := s.reapStaleJobs(ctx, tx, remoteci.ID); err != nil {
			return err
		}

		opts, err := s.selectOptionsFor(ctx, tx, team, nil, nil, nil)
		if err != nil {
			return err
		}
		components, err := s.SelectComponents(ctx, tx, next, team, opts)
		if err != nil {
			return err
		}

		job, err = s.insertJob(ctx, tx, &store.Job{
			RemoteciID:    remoteci.ID,
			TeamID:        team.ID,
			TopicID:       next.ID,
			PipelineID:    prior.PipelineID,
			Upgrade:       true,
			PreviousJobID: &prior.ID,
		}, components)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "upgrade_job", jobID.String())
	s.metrics.RecordScheduled(ctx)
	return job, nil
}

// Update schedules a fresh job against the same topic as the given job,
// re-resolving the latest components, linking via update_previous_job_id.
func (s *Scheduler) Update(ctx context.Context, jobID uuid.UUID) (*store.Job, error) {
	var job *store.Job
	err := s.withRetry(ctx, func(tx store.Tx) error {
		prior, err := s.getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		remoteci, team, err := s.validateRemoteci(ctx, tx, prior.RemoteciID)
		if err != nil {
			return err
		}
		topic, err := s.resolveActiveTopic(ctx, tx, prior.TopicID, team)
		if err != nil {
			return err
		}

		if err := s.store.LockRemoteci(ctx, tx, remoteci.ID); err != nil {
			return err
		}
		if _, err := s.reapStaleJobs(ctx, tx, remoteci.ID); err != nil {
			return err
		}

		opts, err := s.selectOptionsFor(ctx, tx, team, nil, nil, nil)
		if err != nil {
			return err
		}
		components, err := s.SelectComponents(ctx, tx, topic, team, opts)
		if err != nil {
			return err
		}

		job, err = s.insertJob(ctx, tx, &store.Job{
			RemoteciID:          remoteci.ID,
			TeamID:              team.ID,
			TopicID:             topic.ID,
			TopicIDSecondary:    prior.TopicIDSecondary,
			PipelineID:          prior.PipelineID,
			UpdatePreviousJobID: &prior.ID,
		}, components)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, "update_job", jobID.String())
	s.metrics.RecordScheduled(ctx)
	return job, nil
}

// ReapStale kills every live job older than the staleness threshold, across
// all remotecis. Used by the background janitor.
func (s *Scheduler) ReapStale(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.staleAfter)
	killed, err := s.store.KillStaleJobsAll(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	s.metrics.RecordReaped(ctx, killed)
	return killed, nil
}

func (s *Scheduler) validateRemoteci(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Remoteci, *store.Team, error) {
	remoteci, err := s.store.GetRemoteciByID(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, cierr.NotFound("remoteci", id)
	}
	if err != nil {
		return nil, nil, err
	}
	if remoteci.State != store.StateActive {
		return nil, nil, cierr.Forbidden("remoteci %s is not active", remoteci.Name)
	}

	team, err := s.store.GetTeamByID(ctx, tx, remoteci.TeamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, cierr.NotFound("team", remoteci.TeamID)
	}
	if err != nil {
		return nil, nil, err
	}
	if team.State != store.StateActive {
		return nil, nil, cierr.Forbidden("team %s is not active", team.Name)
	}

	return remoteci, team, nil
}

func (s *Scheduler) validatePipeline(ctx context.Context, tx store.DBTransaction, id uuid.UUID, team *store.Team) error {
	pipeline, err := s.store.GetPipelineByID(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return cierr.NotFound("pipeline", id)
	}
	if err != nil {
		return err
	}
	if pipeline.TeamID != team.ID {
		return cierr.Forbidden("pipeline %s belongs to another team", pipeline.Name)
	}
	return nil
}

func (s *Scheduler) getJob(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Job, error) {
	job, err := s.store.GetJobByID(ctx, tx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cierr.NotFound("job", id)
	}
	return job, err
}

func (s *Scheduler) selectOptionsFor(ctx context.Context, tx store.DBTransaction, team *store.Team, componentIDs []uuid.UUID, types []string, filter query.Expr) (selectOptions, error) {
	grants, err := s.store.ComponentAccessTeams(ctx, tx, team.ID)
	if err != nil {
		return selectOptions{}, err
	}
	if len(types) == 0 {
		types = nil
	}
	return selectOptions{
		types:        types,
		componentIDs: componentIDs,
		filter:       filter,
		visibleTeams: append([]uuid.UUID{team.ID}, grants...),
		preRelease:   team.HasPreReleaseAccess,
		allowPartial: s.allowPartial,
	}, nil
}

func (s *Scheduler) reapStaleJobs(ctx context.Context, tx store.DBTransaction, remoteciID uuid.UUID) (int64, error) {
	cutoff := s.now().Add(-s.staleAfter)
	killed, err := s.store.KillStaleJobs(ctx, tx, remoteciID, cutoff)
	if err != nil {
		return 0, err
	}
	if killed > 0 {
		s.log.InfoContext(ctx, "reaped stale jobs", "remoteci_id", remoteciID, "killed", killed)
	}
	return killed, nil
}

func (s *Scheduler) insertJob(ctx context.Context, tx store.DBTransaction, job *store.Job, components []store.Component) (*store.Job, error) {
	now := s.now().UTC()
	job.ID = uuid.New()
	job.Status = store.JobStatusNew
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.store.CreateJob(ctx, tx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	componentIDs := make([]uuid.UUID, len(components))
	for i, c := range components {
		componentIDs[i] = c.ID
	}
	if err := s.store.AddJobComponents(ctx, tx, job.ID, componentIDs); err != nil {
		return nil, err
	}

	return job, nil
}

// errRollback makes withRetry roll back and report success. Dry runs use it
// to guarantee nothing is persisted.
var errRollback = errors.New("rollback requested")

// withRetry runs fn inside a transaction, retrying a bounded number of times
// on serialization and deadlock failures. Unique-constraint violations come
// back as Conflict, never as raw storage errors.
func (s *Scheduler) withRetry(ctx context.Context, fn func(tx store.Tx) error) error {
	var err error
	for attempt := 0; attempt < lockRetries; attempt++ {
		err = s.inTx(ctx, fn)
		if err == nil || !retryable(err) {
			return mapStorageErr(err)
		}
		s.log.WarnContext(ctx, "retrying scheduling transaction", "attempt", attempt+1, "error", err)
	}
	return cierr.Conflict("scheduling conflict, retries exhausted", err)
}

func (s *Scheduler) inTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		if errors.Is(err, errRollback) {
			return nil
		}
		return err
	}
	return tx.Commit()
}

// retryable reports whether err is a transient serialization, deadlock or
// lock-wait failure.
func retryable(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

// mapStorageErr converts unique-constraint violations into Conflict.
func mapStorageErr(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return cierr.Conflict("storage constraint violation", err)
	}
	return err
}
