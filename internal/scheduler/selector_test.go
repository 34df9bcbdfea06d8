package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"cirelay/internal/cierr"
	"cirelay/internal/store"
)

func TestSelectMissingTypeFailsHard(t *testing.T) {
	fx := newFixture(t, Options{})

	tp := fx.store.topics[fx.topic.ID]
	tp.ComponentTypes = []string{"Compose", "Extras"}
	fx.store.topics[fx.topic.ID] = tp

	_, _, err := fx.sched.Schedule(context.Background(), ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID,
	})
	if !cierr.IsKind(err, cierr.KindPreconditionFailed) {
		t.Errorf("error = %v, want PreconditionFailed", err)
	}
}

func TestSelectMissingTypeAllowPartial(t *testing.T) {
	fx := newFixture(t, Options{AllowPartial: true})

	tp := fx.store.topics[fx.topic.ID]
	tp.ComponentTypes = []string{"Compose", "Extras"}
	fx.store.topics[fx.topic.ID] = tp

	_, components, err := fx.sched.Schedule(context.Background(), ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID,
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if len(components) != 1 || components[0].Type != "Compose" {
		t.Errorf("partial selection = %+v, want just the Compose", components)
	}
}

func TestSelectPreReleaseFiltering(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	// A newer pre-release compose exists; without pre-release access the
	// older GA one must win. The GA row stays active because the unique
	// constraint is per owning team and this one belongs to the team.
	teamID := fx.team.ID
	pre := store.Component{
		ID: uuid.New(), Name: "RHEL-8.0.0-20191101.d.0", Type: "Compose",
		TopicID: fx.topic.ID, TeamID: &teamID, State: store.StateActive,
		Tags:      []string{store.PreReleaseTag},
		ReleaseAt: fx.now.Add(-time.Hour), CreatedAt: fx.now.Add(-time.Hour),
	}
	fx.store.components = append(fx.store.components, pre)

	_, components, err := fx.sched.Schedule(ctx, ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID, DryRun: true,
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if components[0].ID != fx.compose.ID {
		t.Errorf("selected %s despite missing pre-release access", components[0].Name)
	}

	// With access the pre-release compose wins on release_at.
	tm := fx.store.teams[fx.team.ID]
	tm.HasPreReleaseAccess = true
	fx.store.teams[fx.team.ID] = tm

	_, components, err = fx.sched.Schedule(ctx, ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID, DryRun: true,
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if components[0].ID != pre.ID {
		t.Errorf("selected %s, want the pre-release compose", components[0].Name)
	}
}

func TestSelectTeamVisibility(t *testing.T) {
	fx := newFixture(t, Options{})
	ctx := context.Background()

	otherTeam := store.Team{ID: uuid.New(), Name: "vendor", State: store.StateActive}
	fx.store.teams[otherTeam.ID] = otherTeam

	private := store.Component{
		ID: uuid.New(), Name: "vendor-build", Type: "Compose",
		TopicID: fx.topic.ID, TeamID: &otherTeam.ID, State: store.StateActive,
		ReleaseAt: fx.now, CreatedAt: fx.now,
	}
	fx.store.components = append(fx.store.components, private)

	// Without a grant the private component is invisible even though it is
	// newer.
	_, components, err := fx.sched.Schedule(ctx, ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID, DryRun: true,
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if components[0].ID != fx.compose.ID {
		t.Errorf("selected private component without a grant")
	}

	// A cross-team access grant makes it visible.
	fx.store.grants[fx.team.ID] = []uuid.UUID{otherTeam.ID}

	_, components, err = fx.sched.Schedule(ctx, ScheduleRequest{
		RemoteciID: fx.remoteci.ID, TopicID: fx.topic.ID, DryRun: true,
	})
	if err != nil {
		t.Fatalf("Schedule failed: %v", err)
	}
	if components[0].ID != private.ID {
		t.Errorf("grant did not expose the private component")
	}
}

func TestSelectExplicitPrivateComponentForbidden(t *testing.T) {
	fx := newFixture(t, Options{})

	otherTeam := uuid.New()
	private := store.Component{
		ID: uuid.New(), Name: "vendor-build", Type: "Extras",
		TopicID: fx.topic.ID, TeamID: &otherTeam, State: store.StateActive,
	}
	fx.store.components = append(fx.store.components, private)

	_, _, err := fx.sched.Schedule(context.Background(), ScheduleRequest{
		RemoteciID:   fx.remoteci.ID,
		TopicID:      fx.topic.ID,
		ComponentIDs: []uuid.UUID{private.ID},
	})
	if !cierr.IsKind(err, cierr.KindForbidden) {
		t.Errorf("error = %v, want Forbidden", err)
	}
}

func TestSelectExplicitDuplicateType(t *testing.T) {
	fx := newFixture(t, Options{})

	second := store.Component{
		ID: uuid.New(), Name: "another-compose", Type: "Compose",
		TopicID: fx.topic.ID, State: store.StateInactive,
	}
	fx.store.components = append(fx.store.components, second)

	// Pin the inactive one explicitly first: inactive pins are rejected
	// before the duplicate check.
	_, _, err := fx.sched.Schedule(context.Background(), ScheduleRequest{
		RemoteciID:   fx.remoteci.ID,
		TopicID:      fx.topic.ID,
		ComponentIDs: []uuid.UUID{second.ID, fx.compose.ID},
	})
	if !cierr.IsKind(err, cierr.KindPreconditionFailed) {
		t.Errorf("error = %v, want PreconditionFailed for inactive pin", err)
	}

	// Two active pins of the same type are Invalid.
	fx.store.components[len(fx.store.components)-1].State = store.StateActive
	teamID := fx.team.ID
	fx.store.components[len(fx.store.components)-1].TeamID = &teamID

	_, _, err = fx.sched.Schedule(context.Background(), ScheduleRequest{
		RemoteciID:   fx.remoteci.ID,
		TopicID:      fx.topic.ID,
		ComponentIDs: []uuid.UUID{second.ID, fx.compose.ID},
	})
	if !cierr.IsKind(err, cierr.KindInvalid) {
		t.Errorf("error = %v, want Invalid for duplicate type", err)
	}
}

func TestResolveTopicPassthrough(t *testing.T) {
	fx := newFixture(t, Options{})

	real, err := fx.sched.ResolveTopic(context.Background(), nil, fx.topic.ID)
	if err != nil {
		t.Fatalf("ResolveTopic failed: %v", err)
	}
	if real.ID != fx.topic.ID {
		t.Errorf("resolved id = %s, want %s", real.ID, fx.topic.ID)
	}
}

func TestResolveTopicSingleHopOnly(t *testing.T) {
	fx := newFixture(t, Options{})

	// virtual2 -> virtual1 -> real is not allowed; the hop target must be real.
	virtual1 := store.Topic{
		ID: uuid.New(), Name: "virtual1", ProductID: fx.topic.ProductID,
		State: store.StateActive, Virtual: true, RealTopicID: &fx.topic.ID,
	}
	fx.store.topics[virtual1.ID] = virtual1
	virtual2 := store.Topic{
		ID: uuid.New(), Name: "virtual2", ProductID: fx.topic.ProductID,
		State: store.StateActive, Virtual: true, RealTopicID: &virtual1.ID,
	}
	fx.store.topics[virtual2.ID] = virtual2

	if _, err := fx.sched.ResolveTopic(context.Background(), nil, virtual1.ID); err != nil {
		t.Fatalf("single hop should resolve: %v", err)
	}
	_, err := fx.sched.ResolveTopic(context.Background(), nil, virtual2.ID)
	if !cierr.IsKind(err, cierr.KindPreconditionFailed) {
		t.Errorf("error = %v, want PreconditionFailed for double indirection", err)
	}
}

func TestResolveTopicUnknown(t *testing.T) {
	fx := newFixture(t, Options{})

	_, err := fx.sched.ResolveTopic(context.Background(), nil, uuid.New())
	if !cierr.IsKind(err, cierr.KindNotFound) {
		t.Errorf("error = %v, want NotFound", err)
	}
}
