// Package policy is the role decision table: which projects a role can see
// and which mutations it may issue. All role checks in the service dispatch
// through here rather than scattering conditionals.
package policy

import "github.com/ent0n29/boardsync/internal/store"

// ProjectScope selects the subscription shape family for a role's visible
// projects.
type ProjectScope string

const (
	// ScopeTeamProjects: projects whose assigned team contains the user's
	// email, resolved through live team membership.
	ScopeTeamProjects ProjectScope = "team"
	// ScopeOwnProjects: projects the user created.
	ScopeOwnProjects ProjectScope = "own"
	// ScopeAllProjects: every project.
	ScopeAllProjects ProjectScope = "all"
	// ScopeNone: no resolved role, no project visibility.
	ScopeNone ProjectScope = "none"
)

func VisibleProjects(role store.Role) ProjectScope {
	switch role {
	case store.RoleDeveloper:
		return ScopeTeamProjects
	case store.RoleManager:
		return ScopeOwnProjects
	case store.RoleAdmin:
		return ScopeAllProjects
	default:
		return ScopeNone
	}
}

func CanCreateProject(role store.Role) bool {
	return role == store.RoleManager || role == store.RoleAdmin
}

// CanDeleteProject: the creator may always delete their own project; admins
// may delete any.
func CanDeleteProject(role store.Role, userID string, p store.Project) bool {
	if role == store.RoleAdmin {
		return true
	}
	return p.CreatorID == userID
}

func CanManageTeams(role store.Role) bool {
	return role == store.RoleManager || role == store.RoleAdmin
}

// CanManageTeam: managers manage only teams they own; admins manage all.
func CanManageTeam(role store.Role, userID string, t store.Team) bool {
	switch role {
	case store.RoleAdmin:
		return true
	case store.RoleManager:
		return t.ManagerID == userID
	default:
		return false
	}
}

func CanAssignTasks(role store.Role) bool {
	return role == store.RoleManager || role == store.RoleAdmin
}

func CanSetDueDates(role store.Role) bool {
	return role == store.RoleManager || role == store.RoleAdmin
}

// SeesDirectory: managers and admins subscribe to the full user and team
// directory for team management and messaging.
func SeesDirectory(role store.Role) bool {
	return role == store.RoleManager || role == store.RoleAdmin
}
