package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"cirelay/internal/store"
)

const remoteciColumns = `id, name, team_id, state, api_secret, cert_fp, created_at`

func (s *Store) GetRemoteciByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Remoteci, error) {
	query := fmt.Sprintf("SELECT %s FROM remotecis WHERE id = $1", remoteciColumns)

	var r store.Remoteci
	err := s.getExecutor(tx).QueryRowContext(ctx, query, id).Scan(
		&r.ID, &r.Name, &r.TeamID, &r.State, &r.APISecret, &r.CertFP, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

func (s *Store) GetRemoteciByAPISecretHash(ctx context.Context, hash string) (*store.Remoteci, error) {
	query := fmt.Sprintf("SELECT %s FROM remotecis WHERE api_secret = $1", remoteciColumns)

	var r store.Remoteci
	err := s.db.QueryRowContext(ctx, query, hash).Scan(
		&r.ID, &r.Name, &r.TeamID, &r.State, &r.APISecret, &r.CertFP, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

// LockRemoteci takes a row-level lock on the remoteci for the duration of tx.
// Two concurrent schedule transactions for the same agent serialize here, which
// is what keeps stale-job reaping and job creation atomic per remoteci.
func (s *Store) LockRemoteci(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error {
	var locked uuid.UUID
	err := tx.QueryRowContext(ctx, "SELECT id FROM remotecis WHERE id = $1 FOR UPDATE", id).Scan(&locked)
	if err != nil {
		return fmt.Errorf("failed to lock remoteci %s: %w", id, err)
	}
	return nil
}
