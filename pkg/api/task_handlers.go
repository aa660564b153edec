package api

import (
	"fmt"
	"net/http"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/tasks"
)

// handleCreateTask creates a task in the resolved organization.
func (a *API) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	var in tasks.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if !httputil.RequireNonEmpty(w, in.Title, "title") {
		return
	}
	if in.Status != "" && !tasks.ValidStatus(in.Status) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid status: %s", in.Status))
		return
	}
	if in.Priority != "" && !tasks.ValidPriority(in.Priority) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid priority: %s", in.Priority))
		return
	}

	task, err := a.tasks.Create(r.Context(), authz, principal.ID, in)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, task)
}

// handleListTasks lists the resolved organization's tasks. Viewers are
// narrowed to tasks assigned to them regardless of the filter.
func (a *API) handleListTasks(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	filter := tasks.ListFilter{
		Status:     tasks.Status(httputil.ParseQueryString(r, "status", "")),
		AssigneeID: httputil.ParseQueryString(r, "assigneeId", ""),
		Category:   httputil.ParseQueryString(r, "category", ""),
	}
	if filter.Status != "" && !tasks.ValidStatus(filter.Status) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid status: %s", filter.Status))
		return
	}

	list, err := a.tasks.List(r.Context(), authz, principal.ID, filter)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"tasks": list})
}

// handleGetTask retrieves one task.
func (a *API) handleGetTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	taskID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	task, err := a.tasks.Get(r.Context(), authz, principal.ID, taskID)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// handleUpdateTask applies a partial update.
func (a *API) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	taskID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var in tasks.UpdateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if in.Status != nil && !tasks.ValidStatus(*in.Status) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid status: %s", *in.Status))
		return
	}
	if in.Priority != nil && !tasks.ValidPriority(*in.Priority) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid priority: %s", *in.Priority))
		return
	}

	task, err := a.tasks.Update(r.Context(), authz, principal.ID, taskID, in)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// handleMoveTask moves a task to a status column and board position.
func (a *API) handleMoveTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	taskID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	var in tasks.MoveInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	if !tasks.ValidStatus(in.Status) {
		httputil.WriteValidationError(w, fmt.Sprintf("invalid status: %s", in.Status))
		return
	}

	task, err := a.tasks.Move(r.Context(), authz, principal.ID, taskID, in)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, task)
}

// handleDeleteTask removes a task.
func (a *API) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	taskID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := a.tasks.Delete(r.Context(), authz, principal.ID, taskID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
