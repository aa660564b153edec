// Package api wires the HTTP surface: routing, middleware chain, and
// request handlers.
package api

import (
	"github.com/go-redis/redis/v8"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/middleware"
	"github.com/taskhive/taskhive/pkg/observability"
	"github.com/taskhive/taskhive/pkg/orgs"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/sso"
	"github.com/taskhive/taskhive/pkg/tasks"
)

// API holds the wired dependencies behind the HTTP handlers.
type API struct {
	logger  *observability.Logger
	metrics *observability.Metrics

	users   *auth.UserStore
	tokens  *auth.TokenManager
	gate    *rbac.Gate
	orgs    *orgs.Service
	tasks   *tasks.Service
	auditor *audit.DBLogger

	authMW *middleware.AuthMiddleware
	redis  *redis.Client

	// ssoProvider is nil when SSO is disabled.
	ssoProvider *sso.OIDCProvider
}

// Options collects everything the API needs.
type Options struct {
	Logger  *observability.Logger
	Metrics *observability.Metrics

	Users   *auth.UserStore
	Tokens  *auth.TokenManager
	Gate    *rbac.Gate
	Orgs    *orgs.Service
	Tasks   *tasks.Service
	Auditor *audit.DBLogger

	AuthMiddleware *middleware.AuthMiddleware
	Redis          *redis.Client
	SSOProvider    *sso.OIDCProvider
}

// New creates the API.
func New(opts Options) *API {
	return &API{
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		users:       opts.Users,
		tokens:      opts.Tokens,
		gate:        opts.Gate,
		orgs:        opts.Orgs,
		tasks:       opts.Tasks,
		auditor:     opts.Auditor,
		authMW:      opts.AuthMiddleware,
		redis:       opts.Redis,
		ssoProvider: opts.SSOProvider,
	}
}
