package api

import (
	"net/http"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
)

// handleListAuditLogs lists the resolved organization's audit trail,
// newest first.
func (a *API) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	authz := middleware.GetAuthz(r)

	limit, err := httputil.ParseQueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	filter := audit.ListFilter{
		OrganizationID: authz.OrganizationID,
		UserID:         httputil.ParseQueryString(r, "userId", ""),
		Action:         audit.Action(httputil.ParseQueryString(r, "action", "")),
		Limit:          limit,
		Offset:         offset,
	}

	entries, err := a.auditor.List(r.Context(), filter)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}
	httputil.WriteSuccess(w, map[string]interface{}{"entries": entries})
}
