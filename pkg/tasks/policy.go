package tasks

import (
	"sort"

	"github.com/taskhive/taskhive/pkg/rbac"
)

// Viewer-editable fields. Assignment and position are deliberately
// absent: viewers work their own tasks but never redistribute work.
var viewerEditableFields = map[string]struct{}{
	"title":       {},
	"description": {},
	"status":      {},
	"priority":    {},
	"category":    {},
	"dueDate":     {},
	"tags":        {},
	"completedAt": {},
}

// changedFields names the fields an update touches, using API field
// names so denials read back in the caller's vocabulary.
func changedFields(in UpdateInput) []string {
	var fields []string
	if in.Title != nil {
		fields = append(fields, "title")
	}
	if in.Description != nil {
		fields = append(fields, "description")
	}
	if in.Status != nil {
		fields = append(fields, "status")
	}
	if in.Priority != nil {
		fields = append(fields, "priority")
	}
	if in.Category != nil {
		fields = append(fields, "category")
	}
	if in.Tags != nil {
		fields = append(fields, "tags")
	}
	if in.AssigneeID != nil {
		fields = append(fields, "assigneeId")
	}
	if in.DueDate != nil || in.ClearDue {
		fields = append(fields, "dueDate")
	}
	return fields
}

// checkUpdatePolicy applies role-dependent update rules and returns a
// denial when the caller may not make this edit.
//
// Owners and admins edit anything. Viewers may only edit tasks assigned
// to them, and only the whitelisted fields. Any other role falls back to
// a creator check: only the task's creator may edit.
func checkUpdatePolicy(authz *rbac.Context, actorID string, task *Task, in UpdateInput) error {
	if authz.IsOwnerOrAdmin() {
		return nil
	}

	if !authz.IsViewer() {
		if task.CreatedBy == actorID {
			return nil
		}
		return rbac.Deny(rbac.DenialNotPermitted, "only the task creator may edit with this role")
	}

	if task.AssigneeID != actorID {
		return rbac.Deny(rbac.DenialNotPermitted, "viewers may only edit tasks assigned to them")
	}

	var offenders []string
	for _, f := range changedFields(in) {
		if _, ok := viewerEditableFields[f]; !ok {
			offenders = append(offenders, f)
		}
	}
	if len(offenders) > 0 {
		sort.Strings(offenders)
		return rbac.DenyFields(rbac.DenialFieldNotPermitted, "role may not modify these fields", offenders)
	}
	return nil
}

// checkMovePolicy mirrors the update rules for board moves: viewers move
// only their own tasks.
func checkMovePolicy(authz *rbac.Context, actorID string, task *Task) error {
	if authz.IsOwnerOrAdmin() {
		return nil
	}
	if task.AssigneeID != actorID {
		return rbac.Deny(rbac.DenialNotPermitted, "viewers may only move tasks assigned to them")
	}
	return nil
}

// checkDeletePolicy allows owners, admins, and the task's creator.
func checkDeletePolicy(authz *rbac.Context, actorID string, task *Task) error {
	if authz.IsOwnerOrAdmin() || task.CreatedBy == actorID {
		return nil
	}
	return rbac.Deny(rbac.DenialNotPermitted, "only the creator or an admin may delete a task")
}

// narrowListFilter restricts what a viewer can list: only tasks assigned
// to them, regardless of what filter they asked for.
func narrowListFilter(authz *rbac.Context, actorID string, filter ListFilter) ListFilter {
	if authz.IsOwnerOrAdmin() {
		return filter
	}
	filter.AssigneeID = actorID
	return filter
}
