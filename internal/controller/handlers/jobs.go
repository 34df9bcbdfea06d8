package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"cirelay/internal/authz"
	"cirelay/internal/controller/middleware"
	"cirelay/internal/query"
	"cirelay/internal/scheduler"
	"cirelay/internal/store"
	"cirelay/pkg/api"
)

// jobFilter restricts the list filter language to job columns.
var jobFilter = &query.Compiler{
	Columns: map[string]bool{
		"name":           true,
		"status":         true,
		"remoteci_id":    true,
		"team_id":        true,
		"topic_id":       true,
		"pipeline_id":    true,
		"user_agent":     true,
		"client_version": true,
	},
}

func jobResponse(j *store.Job, components []store.Component) api.JobResponse {
	resp := api.JobResponse{
		ID:         j.ID.String(),
		Name:       j.Name,
		RemoteciID: j.RemoteciID.String(),
		TeamID:     j.TeamID.String(),
		TopicID:    j.TopicID.String(),
		Status:     string(j.Status),
		Upgrade:    j.Upgrade,
		CreatedAt:  j.CreatedAt,
		UpdatedAt:  j.UpdatedAt,
	}
	if j.TopicIDSecondary != nil {
		resp.TopicIDSecondary = j.TopicIDSecondary.String()
	}
	if j.PipelineID != nil {
		resp.PipelineID = j.PipelineID.String()
	}
	if j.PreviousJobID != nil {
		resp.PreviousJobID = j.PreviousJobID.String()
	}
	for _, c := range components {
		resp.Components = append(resp.Components, componentResponse(c))
	}
	return resp
}

func componentResponse(c store.Component) api.ComponentResponse {
	resp := api.ComponentResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		Type:        c.Type,
		TopicID:     c.TopicID.String(),
		State:       string(c.State),
		Tags:        c.Tags,
		Version:     c.Version,
		DisplayName: c.DisplayName,
		ReleaseAt:   c.ReleaseAt,
	}
	if c.TeamID != nil {
		resp.TeamID = c.TeamID.String()
	}
	return resp
}

func parseOptionalUUID(s string) (*uuid.UUID, error) {
	if s == "" {
		return nil, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// ScheduleJob handles POST /jobs/schedule.
// The agent names a topic; the controller resolves it, selects components and
// returns the created job. With dry_run set, only the resolution is returned.
func (h *Handlers) ScheduleJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(authz.OpScheduleJob, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	var req api.ScheduleJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	topicID, err := uuid.Parse(req.TopicID)
	if err != nil {
		h.httpError(w, "Invalid topic_id", http.StatusBadRequest)
		return
	}
	secondary, err := parseOptionalUUID(req.TopicIDSecondary)
	if err != nil {
		h.httpError(w, "Invalid topic_id_secondary", http.StatusBadRequest)
		return
	}
	pipelineID, err := parseOptionalUUID(req.PipelineID)
	if err != nil {
		h.httpError(w, "Invalid pipeline_id", http.StatusBadRequest)
		return
	}
	componentIDs := make([]uuid.UUID, 0, len(req.ComponentIDs))
	for _, s := range req.ComponentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			h.httpError(w, "Invalid component id", http.StatusBadRequest)
			return
		}
		componentIDs = append(componentIDs, id)
	}

	job, components, err := h.sched.Schedule(ctx, scheduler.ScheduleRequest{
		RemoteciID:       remoteci.ID,
		TopicID:          topicID,
		TopicIDSecondary: secondary,
		PipelineID:       pipelineID,
		Name:             req.Name,
		ComponentIDs:     componentIDs,
		ComponentTypes:   req.ComponentTypes,
		ComponentsQuery:  req.ComponentsQuery,
		DryRun:           req.DryRun,
		UserAgent:        r.UserAgent(),
		ClientVersion:    r.Header.Get("X-Client-Version"),
	})
	if err != nil {
		h.schedError(w, err)
		return
	}

	resp := api.ScheduleJobResponse{}
	for _, c := range components {
		resp.Components = append(resp.Components, componentResponse(c))
	}
	if job == nil {
		// Dry run: nothing was persisted.
		h.respondJson(w, http.StatusOK, resp)
		return
	}
	jr := jobResponse(job, nil)
	resp.Job = &jr
	h.respondJson(w, http.StatusCreated, resp)
}

// CreateJob handles POST /jobs.
// The agent supplies the exact components; no latest-per-type selection runs.
func (h *Handlers) CreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(authz.OpCreateJob, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	var req api.CreateJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	topicID, err := uuid.Parse(req.TopicID)
	if err != nil {
		h.httpError(w, "Invalid topic_id", http.StatusBadRequest)
		return
	}
	pipelineID, err := parseOptionalUUID(req.PipelineID)
	if err != nil {
		h.httpError(w, "Invalid pipeline_id", http.StatusBadRequest)
		return
	}
	componentIDs := make([]uuid.UUID, 0, len(req.ComponentIDs))
	for _, s := range req.ComponentIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			h.httpError(w, "Invalid component id", http.StatusBadRequest)
			return
		}
		componentIDs = append(componentIDs, id)
	}

	job, err := h.sched.Create(ctx, scheduler.CreateRequest{
		RemoteciID:    remoteci.ID,
		TopicID:       topicID,
		ComponentIDs:  componentIDs,
		Name:          req.Name,
		PipelineID:    pipelineID,
		UserAgent:     r.UserAgent(),
		ClientVersion: r.Header.Get("X-Client-Version"),
	})
	if err != nil {
		h.schedError(w, err)
		return
	}

	jr := jobResponse(job, nil)
	h.respondJson(w, http.StatusCreated, api.ScheduleJobResponse{Job: &jr})
}

// UpgradeJob handles POST /jobs/{id}/upgrade.
func (h *Handlers) UpgradeJob(w http.ResponseWriter, r *http.Request) {
	h.scheduleFromJob(w, r, authz.OpUpgradeJob, h.sched.Upgrade)
}

// UpdateJob handles POST /jobs/{id}/update.
func (h *Handlers) UpdateJob(w http.ResponseWriter, r *http.Request) {
	h.scheduleFromJob(w, r, authz.OpUpdateJob, h.sched.Update)
}

// scheduleFromJob is the shared shape of upgrade and update: both derive a new
// job from an existing one owned by the caller's team.
func (h *Handlers) scheduleFromJob(w http.ResponseWriter, r *http.Request, op authz.Operation, run func(ctx context.Context, jobID uuid.UUID) (*store.Job, error)) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(op, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	prior, err := h.store.GetJobByID(ctx, nil, jobID)
	if err != nil || prior.TeamID != remoteci.TeamID {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}

	job, err := run(ctx, jobID)
	if err != nil {
		h.schedError(w, err)
		return
	}

	jr := jobResponse(job, nil)
	h.respondJson(w, http.StatusCreated, api.ScheduleJobResponse{Job: &jr})
}

// GetJob handles GET /jobs/{id}.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
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

	components, err := h.store.GetJobComponents(ctx, nil, jobID)
	if err != nil {
		h.httpError(w, "Failed to load components", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusOK, jobResponse(job, components))
}

// ListJobs handles GET /jobs.
// The optional "where" parameter carries a filter expression, e.g.
// where=q(and(eq(status,success),like(name,openshift%))). Results are always
// scoped to the caller's team.
func (h *Handlers) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	remoteci, ok := middleware.RemoteciFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if err := h.policy.Check(authz.OpListJobs, authz.RoleRemoteci); err != nil {
		h.schedError(w, err)
		return
	}

	teamScope := query.Eq{Column: "team_id", Value: remoteci.TeamID.String()}
	var filter query.Expr = teamScope
	if raw := r.URL.Query().Get("where"); raw != "" {
		parsed, err := query.Parse(raw)
		if err != nil {
			h.schedError(w, err)
			return
		}
		filter = query.And{Exprs: []query.Expr{teamScope, parsed}}
	}

	where, args, err := jobFilter.Compile(filter)
	if err != nil {
		h.schedError(w, err)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 200 {
			h.httpError(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	jobs, err := h.store.ListJobs(ctx, nil, where, args, limit)
	if err != nil {
		h.httpError(w, "Failed to list jobs", http.StatusInternalServerError)
		return
	}

	resp := api.ListJobsResponse{Jobs: []api.JobResponse{}}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, jobResponse(&jobs[i], nil))
	}
	h.respondJson(w, http.StatusOK, resp)
}
