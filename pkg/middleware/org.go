package middleware

import (
	"net/http"

	"github.com/taskhive/taskhive/pkg/contextkeys"
)

// OrgHeader carries the organization a request intends to act within.
const OrgHeader = "X-Organization-Id"

// OrgHintMiddleware records the requested organization ID, if any, in the
// request context. The hint is untrusted input; the authorization gate
// validates membership before it has any effect. The header wins over the
// organizationId query parameter.
func OrgHintMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hint := r.Header.Get(OrgHeader)
		if hint == "" {
			hint = r.URL.Query().Get("organizationId")
		}
		if hint == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := contextkeys.WithOrgHint(r.Context(), hint)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrgHint extracts the requested organization ID from a request.
func GetOrgHint(r *http.Request) string {
	return contextkeys.GetOrgHint(r.Context())
}
