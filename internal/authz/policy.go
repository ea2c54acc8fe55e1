// Package authz decides what each role may do with each resource and narrows
// list queries to the records a user is allowed to see.
package authz

import (
	"fmt"

	"github.com/garnizeh/fieldops/internal/apperr"
	"github.com/garnizeh/fieldops/internal/models"
)

type Action string

const (
	Read   Action = "read"
	List   Action = "list"
	Create Action = "create"
	Update Action = "update"
	Delete Action = "delete"
)

type Resource string

const (
	Job       Resource = "job"
	Task      Resource = "task"
	Equipment Resource = "equipment"
	User      Resource = "user"
	Dashboard Resource = "dashboard"
)

// Target is the record an action applies to. AssignedTo is the technician
// that owns it (the job's assignee, or the parent job's assignee for a task);
// zero when unknown or not applicable, as for list and create.
type Target struct {
	Kind       Resource
	AssignedTo int64
}

// predicate decides a (role, resource, action) entry for a given user and target.
type predicate func(u *models.User, t Target) bool

func always(*models.User, Target) bool { return true }

func ownsTarget(u *models.User, t Target) bool { return t.AssignedTo == u.ID }

type key struct {
	role     models.Role
	resource Resource
	action   Action
}

// policy is the full permission table. Missing entries are denied.
var policy = map[key]predicate{}

func allow(role models.Role, res Resource, p predicate, actions ...Action) {
	for _, a := range actions {
		policy[key{role, res, a}] = p
	}
}

func init() {
	all := []Action{Read, List, Create, Update, Delete}

	for _, res := range []Resource{Job, Task, Equipment, User} {
		allow(models.RoleAdmin, res, always, all...)
	}

	allow(models.RoleSalesAgent, Job, always, Read, List, Create)
	allow(models.RoleSalesAgent, Task, always, Read, List)
	allow(models.RoleSalesAgent, Equipment, always, Read, List)

	// list is narrowed by Scope* rather than by the predicate
	allow(models.RoleTechnician, Job, ownsTarget, Read)
	allow(models.RoleTechnician, Job, always, List)
	allow(models.RoleTechnician, Task, ownsTarget, Read, Update)
	allow(models.RoleTechnician, Task, always, List)
	allow(models.RoleTechnician, Equipment, always, Read, List)
	allow(models.RoleTechnician, Dashboard, always, Read)
}

// Can reports whether u may perform a on t. A nil or inactive user may do nothing.
func Can(u *models.User, a Action, t Target) bool {
	if u == nil || !u.IsActive {
		return false
	}
	p, ok := policy[key{u.Role, t.Kind, a}]
	if !ok {
		return false
	}
	return p(u, t)
}

// Authorize is Can returning apperr.ErrUnauthenticated for a missing or
// inactive user and apperr.ErrForbidden for a denied action.
func Authorize(u *models.User, a Action, t Target) error {
	if u == nil || !u.IsActive {
		return apperr.ErrUnauthenticated
	}
	if !Can(u, a, t) {
		return fmt.Errorf("%s %s as %s: %w", a, t.Kind, u.Role, apperr.ErrForbidden)
	}
	return nil
}

// AuthorizeRole checks that u's role holds some grant for a on kind, without
// looking at ownership. It lets callers refuse a request before reading its
// body; the full check against the record still follows.
func AuthorizeRole(u *models.User, a Action, kind Resource) error {
	if u == nil || !u.IsActive {
		return apperr.ErrUnauthenticated
	}
	if _, ok := policy[key{u.Role, kind, a}]; !ok {
		return fmt.Errorf("%s %s as %s: %w", a, kind, u.Role, apperr.ErrForbidden)
	}
	return nil
}
