package rbac

import (
	"context"
	"fmt"

	"github.com/taskhive/taskhive/pkg/auth"
)

// DecisionObserver receives the outcome of every authorization check.
// Used for metrics; observation never affects the decision.
type DecisionObserver interface {
	ObserveDecision(permission string, allowed bool)
}

// Gate is the single entry point for authorization checks. Every check
// recomputes the caller's context from current membership and role data;
// decisions are never cached, so grants and revocations take effect on
// the next request.
type Gate struct {
	contexts *ContextResolver
	observer DecisionObserver
}

// NewGate creates an authorization gate. observer may be nil.
func NewGate(contexts *ContextResolver, observer DecisionObserver) *Gate {
	return &Gate{contexts: contexts, observer: observer}
}

// Authorize resolves the caller's organization context and requires the
// given permission in it. Returns the resolved context so handlers can
// apply resource-level policy without re-resolving.
func (g *Gate) Authorize(ctx context.Context, principal *auth.Principal, permission, orgHint string) (*Context, error) {
	authz, err := g.contexts.ResolveContext(ctx, principal, orgHint)
	if err != nil {
		g.observe(permission, false)
		return nil, err
	}

	if !authz.HasPermission(permission) {
		g.observe(permission, false)
		return nil, Denyf(DenialInsufficientPermission, "missing permission %s", permission)
	}

	g.observe(permission, true)
	return authz, nil
}

// ResolveContext resolves the caller's organization context without
// requiring a permission. Used by endpoints that are open to every
// member, like listing one's own organization.
func (g *Gate) ResolveContext(ctx context.Context, principal *auth.Principal, orgHint string) (*Context, error) {
	return g.contexts.ResolveContext(ctx, principal, orgHint)
}

func (g *Gate) observe(permission string, allowed bool) {
	if g.observer != nil {
		g.observer.ObserveDecision(permission, allowed)
	}
}

// AggregatePermissions resolves the union of permissions a principal
// holds across all accepted memberships. Informational only, never used
// for enforcement; enforcement is always per organization.
func (g *Gate) AggregatePermissions(ctx context.Context, principal *auth.Principal) ([]string, error) {
	memberships, err := g.contexts.memberships.ActiveMemberships(ctx, principal.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}

	perms := make(map[string]struct{})
	for _, m := range memberships {
		resolved, err := g.contexts.resolver.Resolve(ctx, m.RoleID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve role %s: %w", m.RoleID, err)
		}
		for _, p := range resolved.Permissions {
			perms[p] = struct{}{}
		}
	}
	return sortedSet(perms), nil
}
