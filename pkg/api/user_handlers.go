package api

import (
	"context"
	"net/http"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/rbac"
)

type assignFunc func(ctx context.Context, authz *rbac.Context, actor *auth.Principal, targetUserID string) error

type inviteUserRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// handleListMembers lists the resolved organization's members. What the
// caller sees depends on their role; the service filters.
func (a *API) handleListMembers(w http.ResponseWriter, r *http.Request) {
	authz := middleware.GetAuthz(r)

	members, err := a.orgs.ListMembers(r.Context(), authz)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"members": members})
}

// handleInviteUser invites an email into the resolved organization.
func (a *API) handleInviteUser(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	var req inviteUserRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Role, "role") {
		return
	}

	result, err := a.orgs.InviteUser(r.Context(), authz, principal, req.Email, req.Role)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, result)
}

// handleAssignAdmin promotes a member to admin.
func (a *API) handleAssignAdmin(w http.ResponseWriter, r *http.Request) {
	a.assignRole(w, r, a.orgs.AssignAdmin)
}

// handleAssignViewer demotes a member to viewer.
func (a *API) handleAssignViewer(w http.ResponseWriter, r *http.Request) {
	a.assignRole(w, r, a.orgs.AssignViewer)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request, assign assignFunc) {
	principal := middleware.GetPrincipal(r)
	authz := middleware.GetAuthz(r)

	targetUserID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := assign(r.Context(), authz, principal, targetUserID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
