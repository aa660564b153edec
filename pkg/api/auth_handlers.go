package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/middleware"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string     `json:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      *auth.User `json:"user"`
	// Permissions is the union across all accepted memberships.
	// Informational only; enforcement is always per organization.
	Permissions []string `json:"permissions"`
}

// handleLogin authenticates an email and password and mints a bearer
// token. Unknown email, wrong password, and deactivated account all
// produce the same response.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Email, "email") {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	ctx := r.Context()
	user, err := a.users.GetUserByEmail(ctx, req.Email)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if user == nil || !user.IsActive || !auth.CheckPassword(user.PasswordHash, req.Password) {
		if user != nil {
			audit.Record(ctx, a.auditor, user.ID, "", audit.ActionLoginFailed, audit.ResourceUser, user.ID, nil)
		}
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	a.finishLogin(w, r, user)
}

// finishLogin is shared between password and SSO logins: token, last
// login stamp, audit entry, aggregated permissions.
func (a *API) finishLogin(w http.ResponseWriter, r *http.Request, user *auth.User) {
	ctx := r.Context()

	token, plaintext, err := a.tokens.CreateToken(ctx, user.ID, "login")
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}

	if err := a.users.TouchLastLogin(ctx, user.ID); err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("failed to record last login")
	}

	principal := &auth.Principal{ID: user.ID, Email: user.Email}
	permissions, err := a.gate.AggregatePermissions(ctx, principal)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	audit.Record(ctx, a.auditor, user.ID, "", audit.ActionLogin, audit.ResourceUser, user.ID, nil)

	httputil.WriteSuccess(w, loginResponse{
		Token:       plaintext,
		ExpiresAt:   token.ExpiresAt,
		User:        user,
		Permissions: permissions,
	})
}

// handleMe returns the authenticated user and their aggregated
// permissions.
func (a *API) handleMe(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r)
	if principal == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}

	ctx := r.Context()
	user, err := a.users.GetUser(ctx, principal.ID)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if user == nil {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}

	permissions, err := a.gate.AggregatePermissions(ctx, principal)
	if err != nil {
		httputil.WriteServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]interface{}{
		"user":        user,
		"permissions": permissions,
	})
}

const ssoStateCookie = "taskhive_sso_state"

// handleSSOInitiate starts the OIDC login flow.
func (a *API) handleSSOInitiate(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     ssoStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	a.ssoProvider.InitiateLogin(w, r, state)
}

// handleSSOCallback completes the OIDC flow. First-time SSO users get an
// account created from the verified identity; organization access still
// requires an invitation.
func (a *API) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(ssoStateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httputil.WriteBadRequest(w, "invalid SSO state")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: ssoStateCookie, Value: "", Path: "/", MaxAge: -1})

	ctx := r.Context()
	identity, err := a.ssoProvider.HandleCallback(ctx, r)
	if err != nil {
		a.logger.WithContext(ctx).WithError(err).Warn("SSO callback failed")
		httputil.WriteUnauthorized(w, "SSO authentication failed")
		return
	}

	user, err := a.users.GetUserByEmail(ctx, identity.Email)
	if err != nil {
		httputil.WriteInternalError(w, err)
		return
	}
	if user == nil {
		// SSO users never use the password; store an unguessable one.
		tempPassword, err := auth.GenerateTemporaryPassword()
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		hash, err := auth.HashPassword(tempPassword)
		if err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
		user = &auth.User{
			Email:        identity.Email,
			FullName:     identity.Name,
			PasswordHash: hash,
			IsActive:     true,
		}
		if err := a.users.CreateUser(ctx, user); err != nil {
			httputil.WriteInternalError(w, err)
			return
		}
	}
	if !user.IsActive {
		httputil.WriteUnauthorized(w, "account is deactivated")
		return
	}

	a.finishLogin(w, r, user)
}
