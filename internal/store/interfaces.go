package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"cirelay/internal/query"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx.
// This allows us to pass either a connection pool or an active transaction
// to the repository methods.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// TeamStore reads team state and access grants.
type TeamStore interface {
	// GetTeamByID returns a team by its ID.
	GetTeamByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Team, error)

	// HasProductAccess reports whether the team holds a grant to the product.
	HasProductAccess(ctx context.Context, tx DBTransaction, teamID, productID uuid.UUID) (bool, error)

	// ComponentAccessTeams returns the ids of teams whose private components
	// the given team may see, via explicit cross-team access grants.
	ComponentAccessTeams(ctx context.Context, tx DBTransaction, teamID uuid.UUID) ([]uuid.UUID, error)
}

// TopicStore reads topics. The scheduler never mutates catalog state.
type TopicStore interface {
	GetTopicByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Topic, error)
}

// ComponentStore reads the component catalog.
type ComponentStore interface {
	// GetComponentByID returns a component regardless of state.
	GetComponentByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Component, error)

	// LatestActiveComponent returns the single active component of the given
	// type for the topic, visible to any of visibleTeams (nil team_id rows are
	// always visible), ordered by release_at desc then created_at desc.
	// Pre-release components are excluded unless preRelease is true. A non-nil
	// filter narrows the candidates further (components_query). Returns
	// (nil, nil) when no component matches.
	LatestActiveComponent(ctx context.Context, tx DBTransaction, topicID uuid.UUID, ctype string, visibleTeams []uuid.UUID, preRelease bool, filter query.Expr) (*Component, error)
}

// RemoteciStore reads and locks remotecis.
type RemoteciStore interface {
	GetRemoteciByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Remoteci, error)

	// GetRemoteciByAPISecretHash returns the remoteci whose API secret hashes
	// to the given value. Used by the authentication middleware.
	GetRemoteciByAPISecretHash(ctx context.Context, hash string) (*Remoteci, error)

	// LockRemoteci takes a row-level lock on the remoteci inside tx,
	// serializing concurrent schedule calls for the same agent.
	LockRemoteci(ctx context.Context, tx DBTransaction, id uuid.UUID) error
}

// PipelineStore reads pipelines.
type PipelineStore interface {
	GetPipelineByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Pipeline, error)
}

// JobStore persists jobs and their component snapshots.
type JobStore interface {
	// CreateJob inserts a new job row.
	CreateJob(ctx context.Context, tx DBTransaction, job *Job) error

	// AddJobComponents inserts the jobs_components snapshot rows for the job,
	// in the given order.
	AddJobComponents(ctx context.Context, tx DBTransaction, jobID uuid.UUID, componentIDs []uuid.UUID) error

	// GetJobByID returns a job by its ID.
	GetJobByID(ctx context.Context, tx DBTransaction, id uuid.UUID) (*Job, error)

	// GetJobComponents returns the components bound to the job, in snapshot order.
	GetJobComponents(ctx context.Context, tx DBTransaction, jobID uuid.UUID) ([]Component, error)

	// KillStaleJobs marks as killed every job of the remoteci still in a live
	// status and created before the given cutoff. Returns the number of jobs
	// killed.
	KillStaleJobs(ctx context.Context, tx DBTransaction, remoteciID uuid.UUID, before time.Time) (int64, error)

	// KillStaleJobsAll is the cross-remoteci variant used by the janitor sweep.
	KillStaleJobsAll(ctx context.Context, tx DBTransaction, before time.Time) (int64, error)

	// SetJobStatusIf updates job.status to status only when the current status
	// is one of allowedCurrent. Returns true when the row was updated.
	SetJobStatusIf(ctx context.Context, tx DBTransaction, jobID uuid.UUID, status JobStatus, allowedCurrent []JobStatus) (bool, error)

	// CountLiveJobs returns the number of jobs in a non-terminal status.
	CountLiveJobs(ctx context.Context) (int64, error)

	// ListJobs returns jobs matching an optional compiled filter fragment,
	// newest first, limited to limit rows.
	ListJobs(ctx context.Context, tx DBTransaction, where string, args []interface{}, limit int) ([]Job, error)
}

// JobStateStore persists jobstate audit rows.
type JobStateStore interface {
	CreateJobState(ctx context.Context, tx DBTransaction, js *JobState) error
	ListJobStates(ctx context.Context, tx DBTransaction, jobID uuid.UUID) ([]JobState, error)
}
