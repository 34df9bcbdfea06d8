package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"cirelay/internal/query"
	"cirelay/internal/store"
)

// componentFilter restricts components_query filters to catalog columns.
var componentFilter = &query.Compiler{
	Columns: map[string]bool{
		"name":         true,
		"type":         true,
		"uid":          true,
		"version":      true,
		"display_name": true,
		"tags":         true,
	},
	ArrayColumns: map[string]bool{"tags": true},
}

const componentColumns = `id, name, type, topic_id, team_id, state, tags,
	release_at, uid, version, display_name, created_at`

// prefixedComponentColumns qualifies the component column list with a table
// alias for use in joins.
func prefixedComponentColumns(alias string) string {
	cols := []string{"id", "name", "type", "topic_id", "team_id", "state", "tags",
		"release_at", "uid", "version", "display_name", "created_at"}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

func scanComponent(row interface {
	Scan(dest ...interface{}) error
}) (*store.Component, error) {
	var c store.Component
	var teamID uuid.NullUUID
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.Type,
		&c.TopicID,
		&teamID,
		&c.State,
		pq.Array(&c.Tags),
		&c.ReleaseAt,
		&c.UID,
		&c.Version,
		&c.DisplayName,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if teamID.Valid {
		c.TeamID = &teamID.UUID
	}
	return &c, nil
}

func (s *Store) GetComponentByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Component, error) {
	query := fmt.Sprintf("SELECT %s FROM components WHERE id = $1", componentColumns)
	return scanComponent(s.getExecutor(tx).QueryRowContext(ctx, query, id))
}

// LatestActiveComponent returns the newest active component of the given type
// for the topic, restricted to globally visible rows plus the given teams.
// The active-subset unique index guarantees at most one row per owning team;
// the ORDER BY picks the newest release across owners.
func (s *Store) LatestActiveComponent(ctx context.Context, tx store.DBTransaction, topicID uuid.UUID, ctype string, visibleTeams []uuid.UUID, preRelease bool, filter query.Expr) (*store.Component, error) {
	stmt := fmt.Sprintf(`
		SELECT %s
		FROM components
		WHERE topic_id = $1
		  AND type = $2
		  AND state = 'active'
		  AND (team_id IS NULL OR team_id = ANY($3))
	`, componentColumns)

	args := []interface{}{topicID, ctype, pq.Array(visibleTeams)}
	if !preRelease {
		stmt += " AND NOT (tags @> ARRAY[$4]::text[])"
		args = append(args, store.PreReleaseTag)
	}
	if filter != nil {
		frag, fargs, err := componentFilter.CompileFrom(filter, len(args)+1)
		if err != nil {
			return nil, err
		}
		stmt += " AND (" + frag + ")"
		args = append(args, fargs...)
	}
	stmt += `
		ORDER BY release_at DESC, created_at DESC
		LIMIT 1
	`

	cmpt, err := scanComponent(s.getExecutor(tx).QueryRowContext(ctx, stmt, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select latest %q component for topic %s: %w", ctype, topicID, err)
	}

	return cmpt, nil
}
