package rbac

import (
	"context"
	"fmt"

	"github.com/taskhive/taskhive/pkg/auth"
)

// MembershipStore is the storage surface context resolution needs.
type MembershipStore interface {
	// ActiveMemberships lists every accepted membership a user holds.
	ActiveMemberships(ctx context.Context, userID string) ([]Membership, error)
	// ActiveMembership returns the accepted membership for a (user,
	// organization) pair, or nil when there is none.
	ActiveMembership(ctx context.Context, userID, organizationID string) (*Membership, error)
}

// ContextResolver binds an authenticated principal to a single
// organization and the permission set they hold there.
type ContextResolver struct {
	memberships MembershipStore
	resolver    *Resolver
}

// NewContextResolver creates a context resolver.
func NewContextResolver(memberships MembershipStore, resolver *Resolver) *ContextResolver {
	return &ContextResolver{memberships: memberships, resolver: resolver}
}

// ResolveContext determines which organization a request acts within and
// resolves the caller's role there.
//
// With an explicit organization hint the caller must hold an accepted
// membership in that organization; anything else, including the
// organization not existing at all, is a NotAMember denial. Without a
// hint the organization is inferred only when the caller's accepted
// memberships span exactly one distinct organization; zero is NotAMember
// and more than one is an ambiguity denial rather than a guess.
func (cr *ContextResolver) ResolveContext(ctx context.Context, principal *auth.Principal, requestedOrgID string) (*Context, error) {
	membership, err := cr.selectMembership(ctx, principal.ID, requestedOrgID)
	if err != nil {
		return nil, err
	}

	resolved, err := cr.resolver.Resolve(ctx, membership.RoleID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve role %s: %w", membership.RoleID, err)
	}

	return &Context{
		OrganizationID: membership.OrganizationID,
		MembershipID:   membership.ID,
		RoleID:         membership.RoleID,
		RoleName:       resolved.RoleName,
		Permissions:    resolved.Permissions,
	}, nil
}

func (cr *ContextResolver) selectMembership(ctx context.Context, userID, requestedOrgID string) (*Membership, error) {
	if requestedOrgID != "" {
		membership, err := cr.memberships.ActiveMembership(ctx, userID, requestedOrgID)
		if err != nil {
			return nil, fmt.Errorf("failed to load membership: %w", err)
		}
		if membership == nil {
			return nil, Deny(DenialNotAMember, "no active membership in the requested organization")
		}
		return membership, nil
	}

	memberships, err := cr.memberships.ActiveMemberships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	if len(memberships) == 0 {
		return nil, Deny(DenialNotAMember, "no active organization memberships")
	}

	// Inference requires a single distinct organization; multiple
	// memberships in the same organization cannot happen under the unique
	// constraint but are tolerated here.
	first := &memberships[0]
	for i := 1; i < len(memberships); i++ {
		if memberships[i].OrganizationID != first.OrganizationID {
			return nil, Deny(DenialAmbiguousOrg, "organization context is ambiguous, pass an organization id")
		}
	}
	return first, nil
}
