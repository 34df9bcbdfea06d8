package scheduler

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"cirelay/internal/cierr"
	"cirelay/internal/store"
)

// ResolveTopic resolves a topic id to its real topic, following at most one
// level of virtual-topic indirection. It is a pure read.
func (s *Scheduler) ResolveTopic(ctx context.Context, tx store.DBTransaction, topicID uuid.UUID) (*store.RealTopic, error) {
	topic, err := s.store.GetTopicByID(ctx, tx, topicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cierr.NotFound("topic", topicID)
	}
	if err != nil {
		return nil, err
	}

	if !topic.Virtual {
		return &store.RealTopic{Topic: *topic}, nil
	}

	if topic.RealTopicID == nil {
		return nil, cierr.PreconditionFailed("topic %s has no associated real topic", topic.Name)
	}

	real, err := s.store.GetTopicByID(ctx, tx, *topic.RealTopicID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cierr.NotFound("topic", *topic.RealTopicID)
	}
	if err != nil {
		return nil, err
	}

	// One hop only: the target of a virtual topic must itself be real.
	if real.Virtual {
		return nil, cierr.PreconditionFailed("topic %s redirects to virtual topic %s", topic.Name, real.Name)
	}

	return &store.RealTopic{Topic: *real}, nil
}

// resolveActiveTopic resolves the topic and enforces the scheduling
// preconditions: the resolved topic must be active and the team must hold a
// grant to its product. Until a topic clears export control, the product
// grant alone is not enough; the team also needs pre-release access.
func (s *Scheduler) resolveActiveTopic(ctx context.Context, tx store.DBTransaction, topicID uuid.UUID, team *store.Team) (*store.RealTopic, error) {
	topic, err := s.ResolveTopic(ctx, tx, topicID)
	if err != nil {
		return nil, err
	}

	if topic.State != store.StateActive {
		return nil, cierr.PreconditionFailed("topic %s is not active", topic.Name)
	}

	granted, err := s.store.HasProductAccess(ctx, tx, team.ID, topic.ProductID)
	if err != nil {
		return nil, err
	}
	if !granted {
		return nil, cierr.PreconditionFailed("team %s has no access to the product of topic %s", team.Name, topic.Name)
	}
	if !topic.ExportControl && !team.HasPreReleaseAccess {
		return nil, cierr.Forbidden("topic %s has not cleared export control and team %s has no pre-release access", topic.Name, team.Name)
	}

	return topic, nil
}
