package usecase

import "github.com/Nef3rp1tou/BlogMvc/internal/domain"

// Operation is an action a caller may attempt on a post.
type Operation string

const (
	OpView   Operation = "view"
	OpSearch Operation = "search"
	OpCreate Operation = "create"
	OpEdit   Operation = "edit"
	OpDelete Operation = "delete"
)

// Subject is everything a permission decision depends on. OwnerID is empty
// for operations that do not target a stored post.
type Subject struct {
	CallerID string
	Roles    domain.RoleSet
	OwnerID  string
}

func (s Subject) authenticated() bool { return s.CallerID != "" }

func (s Subject) member() bool {
	return s.Roles.HasAny(domain.RoleUser, domain.RoleAdmin)
}

func (s Subject) owns() bool {
	return s.authenticated() && s.CallerID == s.OwnerID
}

type permissionRule struct {
	name  string
	ops   []Operation
	match func(Subject) bool
	allow bool
}

func (r permissionRule) covers(op Operation) bool {
	for _, o := range r.ops {
		if o == op {
			return true
		}
	}
	return false
}

// permissionRules is evaluated top to bottom; the first rule that covers the
// operation and matches the subject decides. No match means deny.
var permissionRules = []permissionRule{
	{
		name:  "public-read",
		ops:   []Operation{OpView, OpSearch},
		match: func(Subject) bool { return true },
		allow: true,
	},
	{
		name:  "guest-write",
		ops:   []Operation{OpCreate, OpEdit, OpDelete},
		match: func(s Subject) bool { return !s.authenticated() },
		allow: false,
	},
	{
		name:  "member-create",
		ops:   []Operation{OpCreate},
		match: Subject.member,
		allow: true,
	},
	{
		name:  "admin-any",
		ops:   []Operation{OpEdit, OpDelete},
		match: func(s Subject) bool { return s.Roles.Has(domain.RoleAdmin) },
		allow: true,
	},
	{
		name:  "member-own",
		ops:   []Operation{OpEdit, OpDelete},
		match: func(s Subject) bool { return s.member() && s.owns() },
		allow: true,
	},
}

// PermissionEvaluator decides what a caller may do with a post. It is pure:
// roles must be resolved by the caller beforehand.
type PermissionEvaluator struct {
	rules []permissionRule
}

func NewPermissionEvaluator() *PermissionEvaluator {
	return &PermissionEvaluator{rules: permissionRules}
}

// Decide returns the verdict for op along with the name of the deciding rule
// ("default-deny" when none matched).
func (e *PermissionEvaluator) Decide(op Operation, s Subject) (bool, string) {
	for _, r := range e.rules {
		if r.covers(op) && r.match(s) {
			return r.allow, r.name
		}
	}
	return false, "default-deny"
}

func (e *PermissionEvaluator) Allowed(op Operation, s Subject) bool {
	ok, _ := e.Decide(op, s)
	return ok
}

func (e *PermissionEvaluator) CanCreate(callerID string, roles domain.RoleSet) bool {
	return e.Allowed(OpCreate, Subject{CallerID: callerID, Roles: roles})
}

func (e *PermissionEvaluator) CanEdit(post domain.Post, callerID string, roles domain.RoleSet) bool {
	return e.Allowed(OpEdit, Subject{CallerID: callerID, Roles: roles, OwnerID: post.UserID})
}

func (e *PermissionEvaluator) CanDelete(post domain.Post, callerID string, roles domain.RoleSet) bool {
	return e.Allowed(OpDelete, Subject{CallerID: callerID, Roles: roles, OwnerID: post.UserID})
}

// View computes the permission view of post for one caller.
func (e *PermissionEvaluator) View(post domain.Post, callerID string, roles domain.RoleSet) domain.PostView {
	return domain.PostView{
		Post: post,
		PermissionView: domain.PermissionView{
			CanEdit:   e.CanEdit(post, callerID, roles),
			CanDelete: e.CanDelete(post, callerID, roles),
		},
	}
}
