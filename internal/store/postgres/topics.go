package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cirelay/internal/store"
)

func (s *Store) GetTopicByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Topic, error) {
	query := `
		SELECT id, name, product_id, state, component_types, export_control,
		       virtual, real_topic_id, next_topic_id, created_at
		FROM topics
		WHERE id = $1
	`

	var t store.Topic
	var realTopicID, nextTopicID uuid.NullUUID
	err := s.getExecutor(tx).QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.ProductID,
		&t.State,
		pq.Array(&t.ComponentTypes),
		&t.ExportControl,
		&t.Virtual,
		&realTopicID,
		&nextTopicID,
		&t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if realTopicID.Valid {
		t.RealTopicID = &realTopicID.UUID
	}
	if nextTopicID.Valid {
		t.NextTopicID = &nextTopicID.UUID
	}

	return &t, nil
}
