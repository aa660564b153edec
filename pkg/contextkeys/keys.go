// Package contextkeys provides centralized context key definitions
//
// All context keys used across the application are defined here. This
// prevents typos, documents dependencies, and makes key usage
// discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// PrincipalKey contains *auth.Principal
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: All protected API endpoints, authorization gate
	// Type: *auth.Principal
	PrincipalKey Key = "principal"

	// OrgHintKey contains the requested organization ID string
	// Set by: middleware.OrgHintMiddleware (pkg/middleware/org.go)
	// Used by: Authorization gate for context resolution
	// Type: string
	OrgHintKey Key = "organization_hint"

	// AuthzKey contains *rbac.Context
	// Set by: rbac.RequirePermission middleware
	// Used by: Handlers that act within the resolved organization
	// Type: *rbac.Context
	AuthzKey Key = "authorization_context"

	// RequestIDKey contains request ID string (UUID)
	// Set by: HTTP middleware, observability layer
	// Used by: Logger, audit trail, distributed tracing
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: Auth middleware after user authentication
	// Used by: Logger, audit trail, user-scoped operations
	// Type: string
	UserIDKey Key = "user_id"

	// AuditLoggerKey contains audit.Logger interface
	// Set by: API wiring
	// Used by: Handlers that record audit events
	// Type: audit.Logger
	AuditLoggerKey Key = "audit_logger"
)

// Helper functions for type-safe context operations

// WithPrincipal adds the authenticated principal to the context
func WithPrincipal(ctx context.Context, principal interface{}) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithOrgHint adds the requested organization ID to the context
func WithOrgHint(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgHintKey, orgID)
}

// WithAuthz adds the resolved authorization context to the context
func WithAuthz(ctx context.Context, authz interface{}) context.Context {
	return context.WithValue(ctx, AuthzKey, authz)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetOrgHint retrieves the requested organization ID from context
func GetOrgHint(ctx context.Context) string {
	if orgID, ok := ctx.Value(OrgHintKey).(string); ok {
		return orgID
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
