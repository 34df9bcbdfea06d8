package postgres

import (
	"context"

	"github.com/google/uuid"

	"cirelay/internal/store"
)

func (s *Store) GetPipelineByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Pipeline, error) {
	query := "SELECT id, name, team_id, created_at FROM pipelines WHERE id = $1"

	var p store.Pipeline
	err := s.getExecutor(tx).QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.Name, &p.TeamID, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &p, nil
}
