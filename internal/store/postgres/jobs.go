package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cirelay/internal/store"
)

const jobColumns = `id, name, remoteci_id, team_id, topic_id, topic_id_secondary,
	pipeline_id, status, upgrade, previous_job_id, update_previous_job_id,
	user_agent, client_version, created_at, updated_at`

func statusStrings(statuses []store.JobStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func nullUUID(id *uuid.UUID) uuid.NullUUID {
	if id == nil {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: *id, Valid: true}
}

func scanJob(row interface {
	Scan(dest ...interface{}) error
}) (*store.Job, error) {
	var j store.Job
	var topicSecondary, pipelineID, previousJobID, updatePreviousJobID uuid.NullUUID
	err := row.Scan(
		&j.ID,
		&j.Name,
		&j.RemoteciID,
		&j.TeamID,
		&j.TopicID,
		&topicSecondary,
		&pipelineID,
		&j.Status,
		&j.Upgrade,
		&previousJobID,
		&updatePreviousJobID,
		&j.UserAgent,
		&j.ClientVersion,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if topicSecondary.Valid {
		j.TopicIDSecondary = &topicSecondary.UUID
	}
	if pipelineID.Valid {
		j.PipelineID = &pipelineID.UUID
	}
	if previousJobID.Valid {
		j.PreviousJobID = &previousJobID.UUID
	}
	if updatePreviousJobID.Valid {
		j.UpdatePreviousJobID = &updatePreviousJobID.UUID
	}
	return &j, nil
}

// CreateJob inserts a new job row.
func (s *Store) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	query := `
		INSERT INTO jobs (id, name, remoteci_id, team_id, topic_id, topic_id_secondary,
		                  pipeline_id, status, upgrade, previous_job_id, update_previous_job_id,
		                  user_agent, client_version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := tx.ExecContext(ctx, query,
		job.ID,
		job.Name,
		job.RemoteciID,
		job.TeamID,
		job.TopicID,
		nullUUID(job.TopicIDSecondary),
		nullUUID(job.PipelineID),
		job.Status,
		job.Upgrade,
		nullUUID(job.PreviousJobID),
		nullUUID(job.UpdatePreviousJobID),
		job.UserAgent,
		job.ClientVersion,
		job.CreatedAt,
		job.UpdatedAt,
	)
	return err
}

// AddJobComponents inserts the component snapshot rows for the job.
// The position column preserves the resolution order.
func (s *Store) AddJobComponents(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, componentIDs []uuid.UUID) error {
	query := `
		INSERT INTO jobs_components (job_id, component_id, position)
		VALUES ($1, $2, $3)
	`
	for i, cid := range componentIDs {
		if _, err := tx.ExecContext(ctx, query, jobID, cid, i); err != nil {
			return fmt.Errorf("failed to bind component %s to job %s: %w", cid, jobID, err)
		}
	}
	return nil
}

func (s *Store) GetJobByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Job, error) {
	query := fmt.Sprintf("SELECT %s FROM jobs WHERE id = $1", jobColumns)
	return scanJob(s.getExecutor(tx).QueryRowContext(ctx, query, id))
}

// GetJobComponents returns the components bound to the job in snapshot order.
func (s *Store) GetJobComponents(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) ([]store.Component, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM components c
		JOIN jobs_components jc ON jc.component_id = c.id
		WHERE jc.job_id = $1
		ORDER BY jc.position ASC
	`, prefixedComponentColumns("c"))

	rows, err := s.getExecutor(tx).QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list components for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var components []store.Component
	for rows.Next() {
		cmpt, err := scanComponent(rows)
		if err != nil {
			return nil, err
		}
		components = append(components, *cmpt)
	}

	return components, rows.Err()
}

// KillStaleJobs marks as killed every live job of the remoteci created before
// the cutoff. The caller is expected to hold the remoteci row lock.
func (s *Store) KillStaleJobs(ctx context.Context, tx store.DBTransaction, remoteciID uuid.UUID, before time.Time) (int64, error) {
	query := `
		UPDATE jobs
		SET status = 'killed', updated_at = NOW()
		WHERE remoteci_id = $1
		  AND status = ANY($2)
		  AND created_at < $3
	`

	res, err := tx.ExecContext(ctx, query, remoteciID, pq.Array(statusStrings(store.LiveStatuses)), before)
	if err != nil {
		return 0, fmt.Errorf("failed to kill stale jobs for remoteci %s: %w", remoteciID, err)
	}
	return res.RowsAffected()
}

// KillStaleJobsAll is the janitor variant sweeping every remoteci.
func (s *Store) KillStaleJobsAll(ctx context.Context, tx store.DBTransaction, before time.Time) (int64, error) {
	query := `
		UPDATE jobs
		SET status = 'killed', updated_at = NOW()
		WHERE status = ANY($1)
		  AND created_at < $2
	`

	res, err := s.getExecutor(tx).ExecContext(ctx, query, pq.Array(statusStrings(store.LiveStatuses)), before)
	if err != nil {
		return 0, fmt.Errorf("failed to kill stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// SetJobStatusIf updates the job status only when the current status is one of
// allowedCurrent. The conditional UPDATE is what makes terminal transitions
// fire their notification at most once under duplicate submissions.
func (s *Store) SetJobStatusIf(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, status store.JobStatus, allowedCurrent []store.JobStatus) (bool, error) {
	query := `
		UPDATE jobs
		SET status = $1, updated_at = NOW()
		WHERE id = $2
		  AND status = ANY($3)
	`

	res, err := tx.ExecContext(ctx, query, status, jobID, pq.Array(statusStrings(allowedCurrent)))
	if err != nil {
		return false, fmt.Errorf("failed to update status of job %s: %w", jobID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// CountLiveJobs returns the number of jobs in a non-terminal status.
// Feeds the live-jobs observable gauge.
func (s *Store) CountLiveJobs(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM jobs WHERE status = ANY($1)",
		pq.Array(statusStrings(store.LiveStatuses))).Scan(&n)
	return n, err
}

// ListJobs returns jobs newest first. where is an optional compiled filter
// fragment whose placeholders start at $1; it comes from the query package,
// never from raw user input.
func (s *Store) ListJobs(ctx context.Context, tx store.DBTransaction, where string, args []interface{}, limit int) ([]store.Job, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf("SELECT %s FROM jobs", jobColumns)
	if where != "" {
		query += " WHERE " + where
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.getExecutor(tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []store.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}

	return jobs, rows.Err()
}
