// Package api contains shared JSON request/response structs.
// This package is shared between the CLI and Controller.
package api

import "time"

// ScheduleJobRequest is the request body for scheduling a job against a topic.
type ScheduleJobRequest struct {
	TopicID          string   `json:"topic_id"`
	TopicIDSecondary string   `json:"topic_id_secondary,omitempty"`
	ComponentsQuery  string   `json:"components_query,omitempty"`
	ComponentIDs     []string `json:"components,omitempty"`
	ComponentTypes   []string `json:"component_types,omitempty"`
	Name             string   `json:"name,omitempty"`
	PipelineID       string   `json:"pipeline_id,omitempty"`
	DryRun           bool     `json:"dry_run,omitempty"`
}

// CreateJobRequest is the request body for creating a job with explicit
// components, bypassing latest-per-type selection.
type CreateJobRequest struct {
	TopicID       string   `json:"topic_id"`
	ComponentIDs  []string `json:"components"`
	Name          string   `json:"name,omitempty"`
	PipelineID    string   `json:"pipeline_id,omitempty"`
	PreviousJobID string   `json:"previous_job_id,omitempty"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID               string              `json:"id"`
	Name             string              `json:"name,omitempty"`
	RemoteciID       string              `json:"remoteci_id"`
	TeamID           string              `json:"team_id"`
	TopicID          string              `json:"topic_id"`
	TopicIDSecondary string              `json:"topic_id_secondary,omitempty"`
	PipelineID       string              `json:"pipeline_id,omitempty"`
	Status           string              `json:"status"`
	Upgrade          bool                `json:"upgrade,omitempty"`
	PreviousJobID    string              `json:"previous_job_id,omitempty"`
	Components       []ComponentResponse `json:"components,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// ScheduleJobResponse is the response body for schedule, upgrade and update.
// On a dry run Job is null and only Components is populated.
type ScheduleJobResponse struct {
	Job        *JobResponse        `json:"job"`
	Components []ComponentResponse `json:"components"`
}

// ComponentResponse represents a resolved component.
type ComponentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Type        string    `json:"type"`
	TopicID     string    `json:"topic_id"`
	TeamID      string    `json:"team_id,omitempty"`
	State       string    `json:"state"`
	Tags        []string  `json:"tags,omitempty"`
	Version     string    `json:"version,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	ReleaseAt   time.Time `json:"released_at"`
}

// CreateJobStateRequest is the request body for recording a status change.
type CreateJobStateRequest struct {
	Status  string `json:"status"`
	Comment string `json:"comment,omitempty"`
}

// JobStateResponse represents one entry in a job's status trail.
type JobStateResponse struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListJobsResponse is the response body for job listing queries.
type ListJobsResponse struct {
	Jobs []JobResponse `json:"jobs"`
}

// ListJobStatesResponse is the response body for a job's status trail.
type ListJobStatesResponse struct {
	States []JobStateResponse `json:"states"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}
