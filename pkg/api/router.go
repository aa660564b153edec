package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/rbac"
)

// Router builds the full HTTP handler: routes, middleware chain, and
// tracing wrapper.
func (a *API) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(middleware.RequestIDMiddleware)
	r.Use(observability.RecoveryMiddleware(a.logger))
	if a.metrics != nil {
		r.Use(a.metrics.HTTPMiddleware(muxRouteTemplate))
	}
	r.Use(middleware.OrgHintMiddleware)

	// Rate limiting needs Redis; without it the limiter is a no-op.
	rl := func(h http.Handler) http.Handler { return h }
	if a.redis != nil {
		rlm := middleware.NewRateLimitMiddleware(a.redis)
		rl = rlm.Handler
	}

	// Anonymous endpoints, limited by client IP.
	r.Handle("/auth/login", rl(http.HandlerFunc(a.handleLogin))).Methods(http.MethodPost)
	if a.ssoProvider != nil {
		r.Handle("/auth/sso/login", rl(http.HandlerFunc(a.handleSSOInitiate))).Methods(http.MethodGet)
		r.Handle("/auth/sso/callback", rl(http.HandlerFunc(a.handleSSOCallback))).Methods(http.MethodGet)
	}

	// authed endpoints see the principal, so the limiter keys by user.
	authed := func(h http.HandlerFunc) http.Handler {
		return a.authMW.Handler(rl(h))
	}
	require := func(permission string, h http.HandlerFunc) http.Handler {
		return a.authMW.Handler(rl(middleware.RequirePermission(a.gate, permission)(h)))
	}

	r.Handle("/auth/me", authed(a.handleMe)).Methods(http.MethodGet)

	// Organization creation is open to any authenticated user; it is the
	// only way to obtain a first organization.
	r.Handle("/organizations", authed(a.handleCreateOrganization)).Methods(http.MethodPost)
	r.Handle("/organizations", authed(a.handleListOrganizations)).Methods(http.MethodGet)
	r.Handle("/organizations/invitations", authed(a.handleListInvitations)).Methods(http.MethodGet)
	r.Handle("/organizations/invitations/{id}/accept", authed(a.handleAcceptInvitation)).Methods(http.MethodPost)
	r.Handle("/organizations/invitations/{id}/decline", authed(a.handleDeclineInvitation)).Methods(http.MethodPost)

	r.Handle("/users", require(rbac.PermUsersRead, a.handleListMembers)).Methods(http.MethodGet)
	r.Handle("/users/invite", require(rbac.PermUsersInvite, a.handleInviteUser)).Methods(http.MethodPost)
	r.Handle("/users/{id}/assign-admin", require(rbac.PermAssignAdmin, a.handleAssignAdmin)).Methods(http.MethodPost)
	r.Handle("/users/{id}/assign-viewer", require(rbac.PermAssignViewer, a.handleAssignViewer)).Methods(http.MethodPost)

	r.Handle("/tasks", require(rbac.PermTasksCreate, a.handleCreateTask)).Methods(http.MethodPost)
	r.Handle("/tasks", require(rbac.PermTasksRead, a.handleListTasks)).Methods(http.MethodGet)
	r.Handle("/tasks/{id}", require(rbac.PermTasksRead, a.handleGetTask)).Methods(http.MethodGet)
	r.Handle("/tasks/{id}", require(rbac.PermTasksUpdate, a.handleUpdateTask)).Methods(http.MethodPatch)
	r.Handle("/tasks/{id}", require(rbac.PermTasksDelete, a.handleDeleteTask)).Methods(http.MethodDelete)
	r.Handle("/tasks/{id}/move", require(rbac.PermTasksMove, a.handleMoveTask)).Methods(http.MethodPost)

	r.Handle("/audit-logs", require(rbac.PermAuditRead, a.handleListAuditLogs)).Methods(http.MethodGet)

	return otelhttp.NewHandler(r, "taskhive.http")
}

// muxRouteTemplate returns the matched route pattern so metric labels
// stay low-cardinality.
func muxRouteTemplate(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	tmpl, err := route.GetPathTemplate()
	if err != nil {
		return ""
	}
	return tmpl
}
