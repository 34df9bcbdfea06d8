package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cirelay/internal/store"
)

// CreateJobState appends an immutable jobstate audit row.
func (s *Store) CreateJobState(ctx context.Context, tx store.DBTransaction, js *store.JobState) error {
	query := `
		INSERT INTO jobstates (id, job_id, status, comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := tx.ExecContext(ctx, query,
		js.ID,
		js.JobID,
		js.Status,
		js.Comment,
		js.CreatedAt,
	)
	return err
}

func (s *Store) ListJobStates(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) ([]store.JobState, error) {
	query := `
		SELECT id, job_id, status, comment, created_at
		FROM jobstates
		WHERE job_id = $1
		ORDER BY created_at ASC
	`

	rows, err := s.getExecutor(tx).QueryContext(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobstates for job %s: %w", jobID, err)
	}
	defer rows.Close()

	var states []store.JobState
	for rows.Next() {
		var js store.JobState
		if err := rows.Scan(&js.ID, &js.JobID, &js.Status, &js.Comment, &js.CreatedAt); err != nil {
			return nil, err
		}
		states = append(states, js)
	}

	return states, rows.Err()
}
