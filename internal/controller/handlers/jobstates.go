package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"cirelay/internal/authz"
	"cirelay/internal/controller/middleware"
	"cirelay/internal/store"
	"cirelay/pkg/api"
)

func jobStateResponse(js *store.JobState) api.JobStateResponse {
	return api.JobStateResponse{
		ID:        js.ID.String(),
		JobID:     js.JobID.String(),
		Status:    string(js.Status),
		Comment:   js.Comment,
		CreatedAt: js.CreatedAt,
	}
}

// CreateJobState handles POST /jobs/{id}/jobstates.
// It records a status change on the job and advances the state machine.
// Re-submitting the job's current terminal status is an idempotent no-op.
func (h *Handlers) CreateJobState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(authz.OpCreateJobState, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	var req api.CreateJobStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJobByID(ctx, nil, jobID)
	if err != nil || job.TeamID != remoteci.TeamID {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}

	js, err := h.sched.ApplyJobState(ctx, jobID, req.Status, req.Comment)
	if err != nil {
		h.schedError(w, err)
		return
	}
	if js == nil {
		// Duplicate terminal submission; nothing was recorded.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.respondJson(w, http.StatusCreated, jobStateResponse(js))
}

// ListJobStates handles GET /jobs/{id}/jobstates.
// It returns the job's full status trail, oldest first.
func (h *Handlers) ListJobStates(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(authz.OpReadJob, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJobByID(ctx, nil, jobID)
	if err != nil || job.TeamID != remoteci.TeamID {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}

	states, err := h.store.ListJobStates(ctx, nil, jobID)
	if err != nil {
		h.httpError(w, "Failed to list jobstates", http.StatusInternalServerError)
		return
	}

	resp := api.ListJobStatesResponse{States: []api.JobStateResponse{}}
	for i := range states {
		resp.States = append(resp.States, jobStateResponse(&states[i]))
	}
	h.respondJson(w, http.StatusOK, resp)
}
