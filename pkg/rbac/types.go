package rbac

import (
	"sort"
	"time"
)

// Role is a named permission bundle scoped to one organization. Roles form
// a directed graph via InheritsFrom; the graph may contain cycles in raw
// data and traversal must tolerate them.
type Role struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	OrganizationID string    `json:"organization_id"`
	Permissions    []string  `json:"permissions"`
	InheritsFrom   []string  `json:"inherits_from,omitempty"`
	IsSystemRole   bool      `json:"is_system_role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Membership binds a user to an organization with a role. Exactly one
// membership may exist per (user, organization) pair.
//
// Lifecycle: a membership is created pending (InvitedPending=true,
// IsActive=false), becomes active when the invited user accepts, and is
// hard-deleted when they decline. There is no transition back to pending.
type Membership struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	OrganizationID string    `json:"organization_id"`
	RoleID         string    `json:"role_id"`
	IsActive       bool      `json:"is_active"`
	InvitedPending bool      `json:"invited_pending"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Accepted reports whether the membership confers access: active and not
// awaiting invitation acceptance.
func (m *Membership) Accepted() bool {
	return m.IsActive && !m.InvitedPending
}

// RoleEdge is a direct parent in the inheritance graph together with the
// parent's own permission names. Carrying the permissions on the edge lets
// the resolver union a parent's grants immediately, before (and even
// without) fetching the parent node itself.
type RoleEdge struct {
	ID          string
	Permissions []string
}

// RoleNode is a role as seen by the inheritance resolver: its own
// permissions plus its direct parents.
type RoleNode struct {
	ID          string
	Name        string
	Permissions []string
	Parents     []RoleEdge
}

// ResolvedRole is the outcome of walking a role's inheritance graph and
// merging the catalog baseline.
type ResolvedRole struct {
	RoleName    string   `json:"role_name"`
	Permissions []string `json:"permissions"`
}

// Context is the resolved authorization context for one request: the single
// organization the caller is acting within, the role they hold there, and
// the role's aggregated permission set.
type Context struct {
	OrganizationID string   `json:"organization_id"`
	MembershipID   string   `json:"membership_id"`
	RoleID         string   `json:"role_id"`
	RoleName       string   `json:"role_name"`
	Permissions    []string `json:"permissions"`
}

// HasPermission reports whether the resolved permission set contains name.
func (c *Context) HasPermission(name string) bool {
	for _, p := range c.Permissions {
		if p == name {
			return true
		}
	}
	return false
}

// IsOwner reports whether the caller holds the owner system role.
func (c *Context) IsOwner() bool { return c.RoleName == RoleOwner }

// IsOwnerOrAdmin reports whether the caller holds the owner or admin
// system role.
func (c *Context) IsOwnerOrAdmin() bool {
	return c.RoleName == RoleOwner || c.RoleName == RoleAdmin
}

// IsViewer reports whether the caller holds the viewer system role.
func (c *Context) IsViewer() bool { return c.RoleName == RoleViewer }

// sortedSet flattens a string set into a sorted slice. Resolution results
// are deterministic so they can be compared and logged stably.
func sortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
