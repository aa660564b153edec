package api

import (
	"net/http"

	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

// handleCreateOrganization creates an organization with the caller as
// owner. Open to any authenticated user; this is how a user gets their
// first organization.
func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	var req createOrganizationRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	org, err := a.orgs.CreateOrganization(r.Context(), principal, req.Name)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteCreated(w, org)
}

// handleListOrganizations lists the organizations the caller belongs to.
func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	organizations, err := a.orgs.ListOrganizations(r.Context(), principal)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"organizations": organizations})
}

// handleListInvitations lists the caller's pending invitations.
func (a *API) handleListInvitations(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	invitations, err := a.orgs.ListInvitations(r.Context(), principal)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"invitations": invitations})
}

// handleAcceptInvitation activates the caller's pending membership.
func (a *API) handleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	membershipID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := a.orgs.AcceptInvitation(r.Context(), principal, membershipID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// handleDeclineInvitation removes the caller's pending membership.
func (a *API) handleDeclineInvitation(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	membershipID, ok := httputil.ParsePathStringOrError(w, r, "id")
	if !ok {
		return
	}

	if err := a.orgs.DeclineInvitation(r.Context(), principal, membershipID); err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
