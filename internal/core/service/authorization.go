package service

import (
	"sort"

	"github.com/mongoadmin/console/internal/core/domain"
)

// Wildcard grants every action, registered or not.
const Wildcard = "*"

// Permissions maps a role to the set of actions it may perform.
type Permissions map[domain.Role]map[string]struct{}

// NewPermissions builds a Permissions table from plain action lists.
func NewPermissions(table map[domain.Role][]string) Permissions {
	p := make(Permissions, len(table))
	for role, actions := range table {
		set := make(map[string]struct{}, len(actions))
		for _, a := range actions {
			set[a] = struct{}{}
		}
		p[role] = set
	}
	return p
}

// DefaultPermissions is the built-in table. Adding an action is a new entry
// here, not a new branch in the policy.
func DefaultPermissions() Permissions {
	return NewPermissions(map[domain.Role][]string{
		domain.RoleAdmin: {Wildcard},
		domain.RoleEditor: {
			domain.ActionViewCollections,
			domain.ActionViewDocuments,
			domain.ActionCreateDocument,
			domain.ActionEditDocument,
			domain.ActionDeleteDocument,
			domain.ActionExecuteQuery,
			domain.ActionImportData,
			domain.ActionExportData,
			domain.ActionViewAnalytics,
		},
		domain.RoleViewer: {
			domain.ActionViewCollections,
			domain.ActionViewDocuments,
			domain.ActionExportData,
			domain.ActionViewAnalytics,
		},
	})
}

var roleRank = map[domain.Role]int{
	domain.RoleAdmin:  3,
	domain.RoleEditor: 2,
	domain.RoleViewer: 1,
}

// AuthorizationPolicy answers role and permission questions. It is a pure
// function of its table and the user snapshot.
type AuthorizationPolicy struct {
	perms Permissions
}

// NewAuthorizationPolicy uses DefaultPermissions when perms is nil.
func NewAuthorizationPolicy(perms Permissions) *AuthorizationPolicy {
	if perms == nil {
		perms = DefaultPermissions()
	}
	return &AuthorizationPolicy{perms: perms}
}

// HasRole reports whether user ranks at least as high as required. Admins
// always pass; unknown roles never rank.
func (p *AuthorizationPolicy) HasRole(user *domain.UserSnapshot, required domain.Role) bool {
	if user == nil {
		return false
	}
	if user.Role == domain.RoleAdmin {
		return true
	}
	have, ok := roleRank[user.Role]
	if !ok {
		return false
	}
	need, ok := roleRank[required]
	if !ok {
		return false
	}
	return have >= need
}

// HasPermission reports whether user's role grants action.
func (p *AuthorizationPolicy) HasPermission(user *domain.UserSnapshot, action string) bool {
	if user == nil {
		return false
	}
	set := p.perms[user.Role]
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok := set[action]
	return ok
}

// Actions lists the explicit actions granted to role, sorted.
func (p *AuthorizationPolicy) Actions(role domain.Role) []string {
	out := make([]string, 0, len(p.perms[role]))
	for a := range p.perms[role] {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}
