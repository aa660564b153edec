package tasks

import (
	"context"
	"strings"
	"time"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/validation"
)

// MembershipChecker verifies that an assignee belongs to the
// organization. Satisfied by *rbac.Store.
type MembershipChecker interface {
	ActiveMembership(ctx context.Context, userID, organizationID string) (*rbac.Membership, error)
}

// Service implements task operations. The permission gate has already
// run by the time a call lands here; the service enforces the resource
// rules that depend on the task itself.
type Service struct {
	store       *Store
	memberships MembershipChecker
	auditor     audit.Logger
}

// NewService creates the task service. auditor may be nil.
func NewService(store *Store, memberships MembershipChecker, auditor audit.Logger) *Service {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Service{store: store, memberships: memberships, auditor: auditor}
}

// Create creates a task in the resolved organization. Owner and admin
// only; the viewer baseline lacks tasks:create so the gate never lets a
// viewer in here.
func (s *Service) Create(ctx context.Context, authz *rbac.Context, actorID string, in CreateInput) (*Task, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return nil, validation.New("title is required")
	}
	if in.Status == "" {
		in.Status = StatusTodo
	}
	if !ValidStatus(in.Status) {
		return nil, validation.Newf("invalid status: %s", in.Status)
	}
	if in.Priority == "" {
		in.Priority = PriorityMedium
	}
	if !ValidPriority(in.Priority) {
		return nil, validation.Newf("invalid priority: %s", in.Priority)
	}

	if in.AssigneeID != "" {
		if err := s.requireMember(ctx, in.AssigneeID, authz.OrganizationID); err != nil {
			return nil, err
		}
	}

	position, err := s.store.NextPosition(ctx, authz.OrganizationID, in.Status)
	if err != nil {
		return nil, err
	}

	task := &Task{
		OrganizationID: authz.OrganizationID,
		Title:          in.Title,
		Description:    in.Description,
		Status:         in.Status,
		Priority:       in.Priority,
		Category:       in.Category,
		Tags:           in.Tags,
		Position:       position,
		AssigneeID:     in.AssigneeID,
		CreatedBy:      actorID,
		DueDate:        in.DueDate,
	}
	if task.Status == StatusDone {
		now := time.Now().UTC()
		task.CompletedAt = &now
	}

	if err := s.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, actorID, authz.OrganizationID, audit.ActionTaskCreate, audit.ResourceTask, task.ID, map[string]interface{}{
		"title": task.Title,
	})
	return task, nil
}

// List lists tasks in the resolved organization. Viewers see only tasks
// assigned to them.
func (s *Service) List(ctx context.Context, authz *rbac.Context, actorID string, filter ListFilter) ([]Task, error) {
	filter = narrowListFilter(authz, actorID, filter)
	return s.store.ListTasks(ctx, authz.OrganizationID, filter)
}

// Get retrieves one task. A task in another organization is reported as
// cross-organization access no matter the caller's role there.
func (s *Service) Get(ctx context.Context, authz *rbac.Context, actorID string, taskID string) (*Task, error) {
	task, err := s.loadScoped(ctx, authz, taskID)
	if err != nil {
		return nil, err
	}
	if !authz.IsOwnerOrAdmin() && task.AssigneeID != actorID {
		return nil, rbac.Deny(rbac.DenialNotFound, "task not found")
	}
	return task, nil
}

// Update applies a partial update under the role's field rules.
func (s *Service) Update(ctx context.Context, authz *rbac.Context, actorID string, taskID string, in UpdateInput) (*Task, error) {
	task, err := s.loadScoped(ctx, authz, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkUpdatePolicy(authz, actorID, task, in); err != nil {
		return nil, err
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, validation.New("title is required")
		}
		task.Title = title
	}
	if in.Description != nil {
		task.Description = *in.Description
	}
	if in.Status != nil {
		if !ValidStatus(*in.Status) {
			return nil, validation.Newf("invalid status: %s", *in.Status)
		}
		s.applyStatus(task, *in.Status)
	}
	if in.Priority != nil {
		if !ValidPriority(*in.Priority) {
			return nil, validation.Newf("invalid priority: %s", *in.Priority)
		}
		task.Priority = *in.Priority
	}
	if in.Category != nil {
		task.Category = *in.Category
	}
	if in.Tags != nil {
		task.Tags = *in.Tags
	}
	if in.AssigneeID != nil {
		// Reassignment is owner/admin territory; checkUpdatePolicy has
		// already rejected viewers touching assigneeId.
		if *in.AssigneeID != "" {
			if err := s.requireMember(ctx, *in.AssigneeID, authz.OrganizationID); err != nil {
				return nil, err
			}
		}
		task.AssigneeID = *in.AssigneeID
	}
	if in.ClearDue {
		task.DueDate = nil
	} else if in.DueDate != nil {
		task.DueDate = in.DueDate
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, actorID, authz.OrganizationID, audit.ActionTaskUpdate, audit.ResourceTask, task.ID, map[string]interface{}{
		"fields": changedFields(in),
	})
	return task, nil
}

// Move changes a task's status column and board position.
func (s *Service) Move(ctx context.Context, authz *rbac.Context, actorID string, taskID string, in MoveInput) (*Task, error) {
	if !ValidStatus(in.Status) {
		return nil, validation.Newf("invalid status: %s", in.Status)
	}

	task, err := s.loadScoped(ctx, authz, taskID)
	if err != nil {
		return nil, err
	}
	if err := checkMovePolicy(authz, actorID, task); err != nil {
		return nil, err
	}

	s.applyStatus(task, in.Status)
	if in.Position != nil {
		task.Position = *in.Position
	} else {
		position, err := s.store.NextPosition(ctx, authz.OrganizationID, in.Status)
		if err != nil {
			return nil, err
		}
		task.Position = position
	}

	if err := s.store.UpdateTask(ctx, task); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, actorID, authz.OrganizationID, audit.ActionTaskMove, audit.ResourceTask, task.ID, map[string]interface{}{
		"status":   in.Status,
		"position": task.Position,
	})
	return task, nil
}

// Delete removes a task. Owners, admins, and the creator may delete.
func (s *Service) Delete(ctx context.Context, authz *rbac.Context, actorID string, taskID string) error {
	task, err := s.loadScoped(ctx, authz, taskID)
	if err != nil {
		return err
	}
	if err := checkDeletePolicy(authz, actorID, task); err != nil {
		return err
	}

	if err := s.store.DeleteTask(ctx, task.ID); err != nil {
		return err
	}

	audit.Record(ctx, s.auditor, actorID, authz.OrganizationID, audit.ActionTaskDelete, audit.ResourceTask, task.ID, map[string]interface{}{
		"title": task.Title,
	})
	return nil
}

// applyStatus sets the status and keeps completedAt in step: entering
// done stamps it, leaving done clears it.
func (s *Service) applyStatus(task *Task, status Status) {
	if task.Status == status {
		return
	}
	task.Status = status
	if status == StatusDone {
		now := time.Now().UTC()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
}

// loadScoped fetches a task and verifies it belongs to the resolved
// organization.
func (s *Service) loadScoped(ctx context.Context, authz *rbac.Context, taskID string) (*Task, error) {
	task, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, rbac.Deny(rbac.DenialNotFound, "task not found")
	}
	if task.OrganizationID != authz.OrganizationID {
		return nil, rbac.Deny(rbac.DenialCrossOrg, "task belongs to another organization")
	}
	return task, nil
}

func (s *Service) requireMember(ctx context.Context, userID, orgID string) error {
	membership, err := s.memberships.ActiveMembership(ctx, userID, orgID)
	if err != nil {
		return err
	}
	if membership == nil {
		return rbac.Deny(rbac.DenialAssigneeNotMember, "assignee is not an active member of the organization")
	}
	return nil
}
