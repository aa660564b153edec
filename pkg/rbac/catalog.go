package rbac

// Permission names known to the system. Permissions are global; roles
// reference them by name.
const (
	PermTasksCreate  = "tasks:create"
	PermTasksRead    = "tasks:read"
	PermTasksUpdate  = "tasks:update"
	PermTasksDelete  = "tasks:delete"
	PermTasksMove    = "tasks:move"
	PermAuditRead    = "audit-logs:read"
	PermOrgsCreate   = "organizations:create"
	PermUsersInvite  = "users:invite"
	PermAssignAdmin  = "users:assign-admin"
	PermAssignViewer = "users:assign-viewer"
	PermUsersRead    = "users:read"
)

// System role names. Every provisioned organization carries exactly these
// three roles.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// PermissionDefinition describes a single resource:action capability.
type PermissionDefinition struct {
	Name     string `json:"name"`
	Resource string `json:"resource"`
	Action   string `json:"action"`
}

// Definitions returns the full permission catalog.
func Definitions() []PermissionDefinition {
	return []PermissionDefinition{
		{Name: PermTasksCreate, Resource: "tasks", Action: "create"},
		{Name: PermTasksRead, Resource: "tasks", Action: "read"},
		{Name: PermTasksUpdate, Resource: "tasks", Action: "update"},
		{Name: PermTasksDelete, Resource: "tasks", Action: "delete"},
		{Name: PermTasksMove, Resource: "tasks", Action: "move"},
		{Name: PermAuditRead, Resource: "audit-logs", Action: "read"},
		{Name: PermOrgsCreate, Resource: "organizations", Action: "create"},
		{Name: PermUsersInvite, Resource: "users", Action: "invite"},
		{Name: PermAssignAdmin, Resource: "users", Action: "assign-admin"},
		{Name: PermUsersRead, Resource: "users", Action: "read"},
		{Name: PermAssignViewer, Resource: "users", Action: "assign-viewer"},
	}
}

// roleBaselines maps system role names to the permission set each role is
// guaranteed to carry. The baseline is merged into every resolution so a
// stale or hand-edited role row in storage can never silently shrink a
// system role's grants.
var roleBaselines = map[string][]string{
	RoleOwner: {
		PermTasksCreate,
		PermTasksRead,
		PermTasksUpdate,
		PermTasksDelete,
		PermTasksMove,
		PermAuditRead,
		PermOrgsCreate,
		PermUsersInvite,
		PermAssignAdmin,
		PermAssignViewer,
		PermUsersRead,
	},
	RoleAdmin: {
		PermTasksCreate,
		PermTasksRead,
		PermTasksUpdate,
		PermTasksDelete,
		PermTasksMove,
		PermAuditRead,
		PermUsersRead,
	},
	RoleViewer: {
		PermTasksRead,
		// Update is granted so viewers can edit a limited field subset of
		// tasks assigned to them. The policy layer enforces the field and
		// assignee checks; viewers still cannot assign or delete.
		PermTasksUpdate,
		PermTasksMove,
	},
}

// BasePermissions returns the catalog baseline for a system role name, or
// nil when the name is not a system role. The returned slice is a copy.
func BasePermissions(roleName string) []string {
	base, ok := roleBaselines[roleName]
	if !ok {
		return nil
	}
	out := make([]string, len(base))
	copy(out, base)
	return out
}

// SystemRoleNames returns the names of the three system roles in a stable
// order (owner first).
func SystemRoleNames() []string {
	return []string{RoleOwner, RoleAdmin, RoleViewer}
}

// IsAssignableRole reports whether a role name may be granted through the
// invitation and promotion flows. Ownership is only ever granted by
// creating an organization.
func IsAssignableRole(roleName string) bool {
	return roleName == RoleAdmin || roleName == RoleViewer
}
