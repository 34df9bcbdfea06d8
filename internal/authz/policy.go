// Package authz holds the operation-to-roles authorization policy.
// The policy is built once at startup and never mutated afterwards.
package authz

import (
	"cirelay/internal/cierr"
)

// Role is the caller's role as established by the authentication layer.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleUser     Role = "user"
	RoleRemoteci Role = "remoteci"
	RoleFeeder   Role = "feeder"
)

// Operation identifies one logical API operation.
type Operation string

const (
	OpScheduleJob    Operation = "schedule_job"
	OpCreateJob      Operation = "create_job"
	OpUpgradeJob     Operation = "upgrade_job"
	OpUpdateJob      Operation = "update_job"
	OpCreateJobState Operation = "create_jobstate"
	OpReadJob        Operation = "read_job"
	OpListJobs       Operation = "list_jobs"
)

// Policy maps operations to the roles allowed to perform them.
type Policy struct {
	allowed map[Operation]map[Role]bool
}

// Rule grants one operation to a set of roles.
type Rule struct {
	Op    Operation
	Roles []Role
}

// New builds an immutable policy from rules.
func New(rules []Rule) *Policy {
	allowed := make(map[Operation]map[Role]bool, len(rules))
	for _, r := range rules {
		m := allowed[r.Op]
		if m == nil {
			m = make(map[Role]bool, len(r.Roles))
			allowed[r.Op] = m
		}
		for _, role := range r.Roles {
			m[role] = true
		}
	}
	return &Policy{allowed: allowed}
}

// Default is the policy shipped with the controller.
func Default() *Policy {
	return New([]Rule{
		{OpScheduleJob, []Role{RoleAdmin, RoleRemoteci}},
		{OpCreateJob, []Role{RoleAdmin, RoleRemoteci}},
		{OpUpgradeJob, []Role{RoleAdmin, RoleRemoteci}},
		{OpUpdateJob, []Role{RoleAdmin, RoleRemoteci}},
		{OpCreateJobState, []Role{RoleAdmin, RoleRemoteci}},
		{OpReadJob, []Role{RoleAdmin, RoleUser, RoleRemoteci}},
		{OpListJobs, []Role{RoleAdmin, RoleUser, RoleRemoteci}},
	})
}

// Check returns Forbidden when role may not perform op.
func (p *Policy) Check(op Operation, role Role) error {
	if p.allowed[op][role] {
		return nil
	}
	return cierr.Forbidden("role %q may not perform %q", role, op)
}
