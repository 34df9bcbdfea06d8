package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cirelay/internal/store"
)

func (s *Store) GetTeamByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Team, error) {
	query := `
		SELECT id, name, state, has_pre_release_access, created_at
		FROM teams
		WHERE id = $1
	`

	var t store.Team
	err := s.getExecutor(tx).QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.State,
		&t.HasPreReleaseAccess,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// HasProductAccess reports whether the team holds a grant to the product.
func (s *Store) HasProductAccess(ctx context.Context, tx store.DBTransaction, teamID, productID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM products_teams
			WHERE team_id = $1 AND product_id = $2
		)
	`

	var ok bool
	err := s.getExecutor(tx).QueryRowContext(ctx, query, teamID, productID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check product access for team %s: %w", teamID, err)
	}

	return ok, nil
}

// ComponentAccessTeams returns the teams whose private components teamID may see.
func (s *Store) ComponentAccessTeams(ctx context.Context, tx store.DBTransaction, teamID uuid.UUID) ([]uuid.UUID, error) {
	query := `
		SELECT access_team_id FROM teams_components_access
		WHERE team_id = $1
		ORDER BY access_team_id
	`

	rows, err := s.getExecutor(tx).QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list component access grants for team %s: %w", teamID, err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
