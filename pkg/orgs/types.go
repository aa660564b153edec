package orgs

import "time"

// Organization is a tenant boundary. Every role, membership, task, and
// audit entry belongs to exactly one organization. Organizations are
// never deleted, only deactivated; a deactivated organization confers no
// access through its memberships.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"is_active"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserOrganization is an organization as seen by one of its members,
// carrying the role the member holds there.
type UserOrganization struct {
	Organization
	Role string `json:"role"`
}

// Member is a membership joined with user identity and role name, shaped
// for listing.
type Member struct {
	MembershipID string    `json:"membership_id"`
	UserID       string    `json:"user_id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	RoleName     string    `json:"role_name"`
	IsActive     bool      `json:"is_active"`
	Pending      bool      `json:"pending"`
	JoinedAt     time.Time `json:"joined_at"`
}

// Invitation is a pending membership as seen by the invited user.
type Invitation struct {
	MembershipID     string    `json:"membership_id"`
	OrganizationID   string    `json:"organization_id"`
	OrganizationName string    `json:"organization_name"`
	RoleName         string    `json:"role_name"`
	InvitedAt        time.Time `json:"invited_at"`
}

// InviteResult reports what an invitation produced.
type InviteResult struct {
	MembershipID string `json:"membership_id"`
	UserID       string `json:"user_id"`
	// UserCreated is true when the invite created a new account with a
	// temporary password.
	UserCreated bool `json:"user_created"`
}
