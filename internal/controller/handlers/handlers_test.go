package handlers

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"cirelay/internal/authz"
	"cirelay/internal/notify"
	"cirelay/internal/query"
	"cirelay/internal/scheduler"
	"cirelay/internal/store"
)

// Mock transaction
type mockTx struct{}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return nil, nil
}
func (m *mockTx) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return nil, nil
}
func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return nil
}

func (m *mockTx) Commit() error { return nil }

func (m *mockTx) Rollback() error { return nil }

// Mock Store. The canned fixture rows let a real Scheduler run end to end on
// top of it, so handler tests exercise the full request path.
type mockStore struct {
	remoteci  *store.Remoteci
	team      *store.Team
	topic     *store.Topic
	component *store.Component
	pipeline  *store.Pipeline
	job       *store.Job
	jobs      []store.Job
	states    []store.JobState

	topicLookup map[uuid.UUID]*store.Topic

	topicErr         error
	pingErr          error
	statusUpdated    bool
	hasProductAccess bool

	// Spies (to verify arguments passed by handlers)
	createdJob      *store.Job
	boundComponents []uuid.UUID
	createdState    *store.JobState
	capturedStatus  store.JobStatus
	capturedWhere   string
	capturedArgs    []interface{}
	capturedLimit   int
	capturedFilter  query.Expr
}

func (m *mockStore) BeginTx(ctx context.Context) (store.Tx, error) {
	return &mockTx{}, nil
}

func (m *mockStore) Ping(ctx context.Context) error { return m.pingErr }

func (m *mockStore) GetTeamByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Team, error) {
	if m.team == nil || m.team.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.team, nil
}

func (m *mockStore) HasProductAccess(ctx context.Context, tx store.DBTransaction, teamID, productID uuid.UUID) (bool, error) {
	return m.hasProductAccess, nil
}

func (m *mockStore) ComponentAccessTeams(ctx context.Context, tx store.DBTransaction, teamID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (m *mockStore) GetTopicByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Topic, error) {
	if m.topicErr != nil {
		return nil, m.topicErr
	}
	if m.topicLookup != nil {
		if t, ok := m.topicLookup[id]; ok {
			return t, nil
		}
		return nil, sql.ErrNoRows
	}
	if m.topic == nil || m.topic.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.topic, nil
}

func (m *mockStore) GetComponentByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Component, error) {
	if m.component == nil || m.component.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.component, nil
}

func (m *mockStore) LatestActiveComponent(ctx context.Context, tx store.DBTransaction, topicID uuid.UUID, ctype string, visibleTeams []uuid.UUID, preRelease bool, filter query.Expr) (*store.Component, error) {
	m.capturedFilter = filter
	if m.component == nil || m.component.TopicID != topicID || m.component.Type != ctype {
		return nil, nil
	}
	return m.component, nil
}

func (m *mockStore) GetRemoteciByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Remoteci, error) {
	if m.remoteci == nil || m.remoteci.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.remoteci, nil
}

func (m *mockStore) GetRemoteciByAPISecretHash(ctx context.Context, hash string) (*store.Remoteci, error) {
	return m.remoteci, nil
}

func (m *mockStore) LockRemoteci(ctx context.Context, tx store.DBTransaction, id uuid.UUID) error {
	return nil
}

func (m *mockStore) GetPipelineByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Pipeline, error) {
	if m.pipeline == nil || m.pipeline.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.pipeline, nil
}

func (m *mockStore) CreateJob(ctx context.Context, tx store.DBTransaction, job *store.Job) error {
	m.createdJob = job
	return nil
}

func (m *mockStore) AddJobComponents(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, componentIDs []uuid.UUID) error {
	m.boundComponents = componentIDs
	return nil
}

func (m *mockStore) GetJobByID(ctx context.Context, tx store.DBTransaction, id uuid.UUID) (*store.Job, error) {
	if m.job == nil || m.job.ID != id {
		return nil, sql.ErrNoRows
	}
	cp := *m.job
	return &cp, nil
}

func (m *mockStore) GetJobComponents(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) ([]store.Component, error) {
	if m.component == nil {
		return nil, nil
	}
	return []store.Component{*m.component}, nil
}

func (m *mockStore) KillStaleJobs(ctx context.Context, tx store.DBTransaction, remoteciID uuid.UUID, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockStore) KillStaleJobsAll(ctx context.Context, tx store.DBTransaction, before time.Time) (int64, error) {
	return 0, nil
}

func (m *mockStore) SetJobStatusIf(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID, status store.JobStatus, allowedCurrent []store.JobStatus) (bool, error) {
	m.capturedStatus = status
	if m.statusUpdated && m.job != nil {
		m.job.Status = status
	}
	return m.statusUpdated, nil
}

func (m *mockStore) CountLiveJobs(ctx context.Context) (int64, error) {
	return int64(len(m.jobs)), nil
}

func (m *mockStore) ListJobs(ctx context.Context, tx store.DBTransaction, where string, args []interface{}, limit int) ([]store.Job, error) {
	m.capturedWhere = where
	m.capturedArgs = args
	m.capturedLimit = limit
	return m.jobs, nil
}

func (m *mockStore) CreateJobState(ctx context.Context, tx store.DBTransaction, js *store.JobState) error {
	m.createdState = js
	return nil
}

func (m *mockStore) ListJobStates(ctx context.Context, tx store.DBTransaction, jobID uuid.UUID) ([]store.JobState, error) {
	return m.states, nil
}

// countingDispatcher counts terminal-status events.
type countingDispatcher struct {
	count atomic.Int64
}

func (d *countingDispatcher) Dispatch(ctx context.Context, ev notify.Event) error {
	d.count.Add(1)
	return nil
}

// newFixtureStore returns a mock store with one active team, topic, component
// and remoteci, coherent enough for a full schedule round trip.
func newFixtureStore() *mockStore {
	teamID := uuid.New()
	topicID := uuid.New()
	m := &mockStore{
		team: &store.Team{ID: teamID, Name: "partner", State: store.StateActive},
		topic: &store.Topic{
			ID:             topicID,
			Name:           "RHEL-8.0",
			ProductID:      uuid.New(),
			State:          store.StateActive,
			ExportControl:  true,
			ComponentTypes: []string{"Compose"},
		},
		component: &store.Component{
			ID:        uuid.New(),
			Name:      "RHEL-8.0.0-20190926.n.0",
			Type:      "Compose",
			TopicID:   topicID,
			State:     store.StateActive,
			ReleaseAt: time.Now().Add(-24 * time.Hour),
		},
		remoteci: &store.Remoteci{
			ID:     uuid.New(),
			Name:   "lab-agent-1",
			TeamID: teamID,
			State:  store.StateActive,
		},
		hasProductAccess: true,
		statusUpdated:    true,
	}
	return m
}

func newTestHandlers(t *testing.T, m *mockStore, notifier notify.Dispatcher) *Handlers {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sched := scheduler.New(m, log, scheduler.Options{Notifier: notifier})
	return New(m, sched, authz.Default(), log)
}
