package scheduler

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"cirelay/internal/cierr"
	"cirelay/internal/query"
	"cirelay/internal/store"
)

// selectOptions tunes one component selection pass.
type selectOptions struct {
	// types overrides the topic's component_types when non-nil.
	types []string
	// componentIDs switches to the explicit-pins path when non-empty.
	componentIDs []uuid.UUID
	// filter narrows latest-per-type candidates (components_query).
	filter query.Expr
	// visibleTeams is the caller's team plus its cross-team access grants.
	visibleTeams []uuid.UUID
	// preRelease allows pre-release tagged components.
	preRelease bool
	// allowPartial skips types with no active component instead of failing.
	allowPartial bool
}

// SelectComponents picks the component set for one resolved topic. Given
// explicit ids it validates and preserves their order; otherwise it takes the
// single latest active component per required type. Two calls with identical
// inputs against an unchanged catalog return the identical ordered list, which
// is what makes dry-run resolution repeatable.
func (s *Scheduler) SelectComponents(ctx context.Context, tx store.DBTransaction, topic *store.RealTopic, team *store.Team, opts selectOptions) ([]store.Component, error) {
	if len(opts.componentIDs) > 0 {
		return s.selectByIDs(ctx, tx, topic, team, opts)
	}
	return s.selectLatest(ctx, tx, topic, opts)
}

func (s *Scheduler) selectLatest(ctx context.Context, tx store.DBTransaction, topic *store.RealTopic, opts selectOptions) ([]store.Component, error) {
	types := topic.ComponentTypes
	if opts.types != nil {
		types = opts.types
	}

	components := make([]store.Component, 0, len(types))
	for _, ctype := range types {
		cmpt, err := s.store.LatestActiveComponent(ctx, tx, topic.ID, ctype, opts.visibleTeams, opts.preRelease, opts.filter)
		if err != nil {
			return nil, err
		}
		if cmpt == nil {
			if opts.allowPartial {
				continue
			}
			return nil, cierr.PreconditionFailed("no active component for type %q in topic %s", ctype, topic.Name)
		}
		components = append(components, *cmpt)
	}

	return components, nil
}

func (s *Scheduler) selectByIDs(ctx context.Context, tx store.DBTransaction, topic *store.RealTopic, team *store.Team, opts selectOptions) ([]store.Component, error) {
	types := topic.ComponentTypes
	if opts.types != nil {
		types = opts.types
	}
	declared := make(map[string]bool, len(types))
	for _, ctype := range types {
		declared[ctype] = true
	}

	seenTypes := make(map[string]bool, len(opts.componentIDs))
	components := make([]store.Component, 0, len(opts.componentIDs))

	for _, id := range opts.componentIDs {
		cmpt, err := s.store.GetComponentByID(ctx, tx, id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, cierr.NotFound("component", id)
		}
		if err != nil {
			return nil, err
		}

		if cmpt.TopicID != topic.ID {
			return nil, cierr.NotFound("component", id)
		}
		if !visibleTo(cmpt, opts.visibleTeams) {
			return nil, cierr.Forbidden("component %s is not visible to team %s", id, team.Name)
		}
		if cmpt.State != store.StateActive {
			return nil, cierr.PreconditionFailed("component %s is not active", cmpt.Name)
		}
		if cmpt.PreRelease() && !opts.preRelease {
			return nil, cierr.Forbidden("component %s is pre-release", cmpt.Name)
		}
		if !declared[cmpt.Type] {
			return nil, cierr.Invalid("component type %q is not declared by topic %s", cmpt.Type, topic.Name)
		}
		if seenTypes[cmpt.Type] {
			return nil, cierr.Invalid("component type %q duplicated", cmpt.Type)
		}
		seenTypes[cmpt.Type] = true

		components = append(components, *cmpt)
	}

	// The pins must cover every required type, exactly once each.
	if len(components) != len(types) {
		return nil, cierr.Invalid("topic %s requires %d component types, got %d components", topic.Name, len(types), len(components))
	}

	return components, nil
}

func visibleTo(cmpt *store.Component, teams []uuid.UUID) bool {
	if cmpt.TeamID == nil {
		return true
	}
	for _, t := range teams {
		if *cmpt.TeamID == t {
			return true
		}
	}
	return false
}
