// Package store contains the database layer for cirelay.
package store

import (
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle state shared by teams, topics, components and remotecis.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
)

// JobStatus is the scheduling status of a job.
type JobStatus string

const (
	JobStatusNew     JobStatus = "new"
	JobStatusPreRun  JobStatus = "pre-run"
	JobStatusRunning JobStatus = "running"
	JobStatusPostRun JobStatus = "post-run"
	JobStatusSuccess JobStatus = "success"
	JobStatusFailure JobStatus = "failure"
	JobStatusError   JobStatus = "error"
	JobStatusKilled  JobStatus = "killed"
)

// LiveStatuses are the non-terminal statuses a job can be reaped from.
var LiveStatuses = []JobStatus{JobStatusNew, JobStatusPreRun, JobStatusRunning, JobStatusPostRun}

// Terminal reports whether s accepts no further transitions.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobStatusSuccess, JobStatusFailure, JobStatusError, JobStatusKilled:
		return true
	}
	return false
}

// Team is the tenant boundary. It owns remotecis, pipelines and private components.
type Team struct {
	ID                  uuid.UUID
	Name                string
	State               State
	HasPreReleaseAccess bool
	CreatedAt           time.Time
}

// Topic is a named scheduling target under a product, e.g. "RHEL-8.0".
// A virtual topic is an alias: it carries no components of its own and
// redirects scheduling to RealTopicID (one hop only).
type Topic struct {
	ID             uuid.UUID
	Name           string
	ProductID      uuid.UUID
	State          State
	ComponentTypes []string
	ExportControl  bool
	Virtual        bool
	RealTopicID    *uuid.UUID
	NextTopicID    *uuid.UUID
	CreatedAt      time.Time
}

// RealTopic is a topic that went through virtual-topic resolution.
// Only the resolver produces values of this type, so a selector or
// scheduler holding a RealTopic can rely on it not being an alias.
type RealTopic struct {
	Topic
}

// Component is a versioned build artifact belonging to a topic and type.
// TeamID is nil for globally visible components. Superseded components
// are marked inactive, never deleted, so job snapshots stay intact.
type Component struct {
	ID          uuid.UUID
	Name        string
	Type        string
	TopicID     uuid.UUID
	TeamID      *uuid.UUID
	State       State
	Tags        []string
	ReleaseAt   time.Time
	UID         string
	Version     string
	DisplayName string
	CreatedAt   time.Time
}

// PreReleaseTag marks a component as pre-release; such components are
// selectable only by teams with HasPreReleaseAccess.
const PreReleaseTag = "pre-release"

// PreRelease reports whether the component carries the pre-release tag.
func (c *Component) PreRelease() bool {
	for _, t := range c.Tags {
		if t == PreReleaseTag {
			return true
		}
	}
	return false
}

// Remoteci is a registered CI agent. It pulls jobs against topics on
// behalf of its team.
type Remoteci struct {
	ID        uuid.UUID
	Name      string
	TeamID    uuid.UUID
	State     State
	APISecret string
	CertFP    string
	CreatedAt time.Time
}

// Pipeline groups a sequence of jobs for one team. It carries no
// scheduling logic beyond the association.
type Pipeline struct {
	ID        uuid.UUID
	Name      string
	TeamID    uuid.UUID
	CreatedAt time.Time
}

// Job is one scheduled execution bound to the component snapshot that
// was resolved at schedule time.
type Job struct {
	ID                  uuid.UUID
	Name                string
	RemoteciID          uuid.UUID
	TeamID              uuid.UUID
	TopicID             uuid.UUID
	TopicIDSecondary    *uuid.UUID
	PipelineID          *uuid.UUID
	Status              JobStatus
	Upgrade             bool
	PreviousJobID       *uuid.UUID
	UpdatePreviousJobID *uuid.UUID
	UserAgent           string
	ClientVersion       string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// JobState is one immutable entry in a job's status audit trail.
type JobState struct {
	ID        uuid.UUID
	JobID     uuid.UUID
	Status    JobStatus
	Comment   string
	CreatedAt time.Time
}
