package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"cirelay/internal/controller/middleware"
	"cirelay/internal/store"
	"cirelay/pkg/api"
)

func postJobState(t *testing.T, m *mockStore, h *Handlers, jobID uuid.UUID, body api.CreateJobStateRequest) *httptest.ResponseRecorder {
	t.Helper()

	rr := doRequest(t, m, http.MethodPost, "/jobs/"+jobID.String()+"/jobstates", body, func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue("id", jobID.String())
		h.CreateJobState(w, r)
	})
	return rr
}

func fixtureJob(m *mockStore, status store.JobStatus) *store.Job {
	m.job = &store.Job{
		ID:         uuid.New(),
		RemoteciID: m.remoteci.ID,
		TeamID:     m.team.ID,
		TopicID:    m.topic.ID,
		Status:     status,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	return m.job
}

func TestCreateJobState_Progression(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusNew)
	h := newTestHandlers(t, m, &countingDispatcher{})

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "pre-run"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var resp api.JobStateResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "pre-run" {
		t.Errorf("got status %q, want pre-run", resp.Status)
	}
	if m.capturedStatus != store.JobStatusPreRun {
		t.Errorf("job status set to %q, want pre-run", m.capturedStatus)
	}
}

func TestCreateJobState_TerminalFiresNotification(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusRunning)
	notifier := &countingDispatcher{}
	h := newTestHandlers(t, m, notifier)

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "success", Comment: "all green"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if got := notifier.count.Load(); got != 1 {
		t.Errorf("got %d notifications, want 1", got)
	}
	if m.createdState == nil || m.createdState.Comment != "all green" {
		t.Errorf("jobstate not recorded: %+v", m.createdState)
	}
}

func TestCreateJobState_DuplicateTerminalIsNoOp(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusSuccess)
	notifier := &countingDispatcher{}
	h := newTestHandlers(t, m, notifier)

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "success"})

	if rr.Code != http.StatusNoContent {
		t.Fatalf("got status %d, want 204: %s", rr.Code, rr.Body.String())
	}
	if got := notifier.count.Load(); got != 0 {
		t.Errorf("duplicate terminal fired %d notifications, want 0", got)
	}
	if m.createdState != nil {
		t.Error("duplicate terminal must not record a jobstate")
	}
}

func TestCreateJobState_ConflictAfterTerminal(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusSuccess)
	h := newTestHandlers(t, m, &countingDispatcher{})

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "failure"})

	if rr.Code != http.StatusConflict {
		t.Errorf("got status %d, want 409: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateJobState_LegacySynonym(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusRunning)
	h := newTestHandlers(t, m, &countingDispatcher{})

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "deployment-failure"})

	if rr.Code != http.StatusCreated {
		t.Fatalf("got status %d, want 201: %s", rr.Code, rr.Body.String())
	}
	if m.capturedStatus != store.JobStatusFailure {
		t.Errorf("job status set to %q, want failure", m.capturedStatus)
	}
}

func TestCreateJobState_UnknownStatus(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusRunning)
	h := newTestHandlers(t, m, &countingDispatcher{})

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "nonsense"})

	if rr.Code != http.StatusBadRequest {
		t.Errorf("got status %d, want 400: %s", rr.Code, rr.Body.String())
	}
}

func TestCreateJobState_OtherTeamJob(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusRunning)
	job.TeamID = uuid.New()
	m.job = job
	h := newTestHandlers(t, m, &countingDispatcher{})

	rr := postJobState(t, m, h, job.ID, api.CreateJobStateRequest{Status: "running"})

	if rr.Code != http.StatusNotFound {
		t.Errorf("got status %d, want 404: %s", rr.Code, rr.Body.String())
	}
}

func TestListJobStates_ReturnsTrail(t *testing.T) {
	m := newFixtureStore()
	job := fixtureJob(m, store.JobStatusSuccess)
	m.states = []store.JobState{
		{ID: uuid.New(), JobID: job.ID, Status: store.JobStatusNew, CreatedAt: time.Now().Add(-time.Hour)},
		{ID: uuid.New(), JobID: job.ID, Status: store.JobStatusRunning, CreatedAt: time.Now().Add(-30 * time.Minute)},
		{ID: uuid.New(), JobID: job.ID, Status: store.JobStatusSuccess, CreatedAt: time.Now()},
	}
	h := newTestHandlers(t, m, &countingDispatcher{})

	req := httptest.NewRequest(http.MethodGet, "/jobs/"+job.ID.String()+"/jobstates", nil)
	req = req.WithContext(middleware.NewContextWithRemoteci(req.Context(), m.remoteci))
	req.SetPathValue("id", job.ID.String())
	rr := httptest.NewRecorder()
	h.ListJobStates(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200: %s", rr.Code, rr.Body.String())
	}
	var resp api.ListJobStatesResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.States) != 3 {
		t.Fatalf("expected 3 states, got %d", len(resp.States))
	}
	if resp.States[0].Status != "new" || resp.States[2].Status != "success" {
		t.Errorf("trail out of order: %+v", resp.States)
	}
}
