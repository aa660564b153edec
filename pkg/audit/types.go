package audit

import "time"

// Action identifies what happened.
type Action string

const (
	ActionLogin            Action = "auth.login"
	ActionLoginFailed      Action = "auth.login_failed"
	ActionOrgCreate        Action = "org.create"
	ActionUserInvite       Action = "org.user_invite"
	ActionInviteAccept     Action = "org.invite_accept"
	ActionInviteDecline    Action = "org.invite_decline"
	ActionRoleAssignAdmin  Action = "org.assign_admin"
	ActionRoleAssignViewer Action = "org.assign_viewer"
	ActionTaskCreate       Action = "task.create"
	ActionTaskUpdate       Action = "task.update"
	ActionTaskDelete       Action = "task.delete"
	ActionTaskMove         Action = "task.move"
)

// Resource identifies the kind of entity an entry refers to.
type Resource string

const (
	ResourceUser         Resource = "user"
	ResourceOrganization Resource = "organization"
	ResourceMembership   Resource = "membership"
	ResourceTask         Resource = "task"
)

// Entry is a single append-only audit record. Entries are never updated
// or deleted except by retention purge.
type Entry struct {
	ID             string                 `json:"id"`
	UserID         string                 `json:"user_id"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	Action         Action                 `json:"action"`
	Resource       Resource               `json:"resource"`
	ResourceID     string                 `json:"resource_id,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// ListFilter narrows an audit listing.
type ListFilter struct {
	OrganizationID string
	UserID         string
	Action         Action
	Limit          int
	Offset         int
}
