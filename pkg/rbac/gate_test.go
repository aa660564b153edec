package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/auth"
)

type recordingObserver struct {
	permissions []string
	outcomes    []bool
}

func (o *recordingObserver) ObserveDecision(permission string, allowed bool) {
	o.permissions = append(o.permissions, permission)
	o.outcomes = append(o.outcomes, allowed)
}

func TestGateAuthorizeAllowed(t *testing.T) {
	store := newTestStore(t)
	observer := &recordingObserver{}
	gate := NewGate(newTestContextResolver(store), observer)

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleOwner, nil, nil)
	userID := uuid.NewString()
	createTestMembership(t, store, userID, orgID, role.ID, true, false)

	authz, err := gate.Authorize(context.Background(), &auth.Principal{ID: userID}, PermUsersInvite, "")
	require.NoError(t, err)

	assert.Equal(t, orgID, authz.OrganizationID)
	assert.True(t, authz.IsOwner())
	assert.Equal(t, []string{PermUsersInvite}, observer.permissions)
	assert.Equal(t, []bool{true}, observer.outcomes)
}

func TestGateAuthorizeInsufficientPermission(t *testing.T) {
	store := newTestStore(t)
	observer := &recordingObserver{}
	gate := NewGate(newTestContextResolver(store), observer)

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleViewer, nil, nil)
	userID := uuid.NewString()
	createTestMembership(t, store, userID, orgID, role.ID, true, false)

	_, err := gate.Authorize(context.Background(), &auth.Principal{ID: userID}, PermTasksDelete, "")

	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialInsufficientPermission, d.Kind)
	assert.Equal(t, []bool{false}, observer.outcomes)
}

func TestGateAuthorizeDecisionsAreFresh(t *testing.T) {
	store := newTestStore(t)
	gate := NewGate(newTestContextResolver(store), nil)
	ctx := context.Background()

	orgID := createTestOrg(t, store)
	admin := createTestRole(t, store, orgID, RoleAdmin, nil, nil)
	viewer := createTestRole(t, store, orgID, RoleViewer, nil, nil)
	userID := uuid.NewString()
	m := createTestMembership(t, store, userID, orgID, admin.ID, true, false)

	principal := &auth.Principal{ID: userID}
	_, err := gate.Authorize(ctx, principal, PermTasksDelete, "")
	require.NoError(t, err)

	// Demote and check again: no caching, so the next request sees the
	// reduced role immediately.
	require.NoError(t, store.UpdateMembershipRole(ctx, m.ID, viewer.ID))

	_, err = gate.Authorize(ctx, principal, PermTasksDelete, "")
	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialInsufficientPermission, d.Kind)
}

func TestGateAggregatePermissions(t *testing.T) {
	store := newTestStore(t)
	gate := NewGate(newTestContextResolver(store), nil)

	userID := uuid.NewString()

	ownerOrg := createTestOrg(t, store)
	ownerRole := createTestRole(t, store, ownerOrg, RoleOwner, nil, nil)
	createTestMembership(t, store, userID, ownerOrg, ownerRole.ID, true, false)

	viewerOrg := createTestOrg(t, store)
	viewerRole := createTestRole(t, store, viewerOrg, RoleViewer, nil, nil)
	createTestMembership(t, store, userID, viewerOrg, viewerRole.ID, true, false)

	perms, err := gate.AggregatePermissions(context.Background(), &auth.Principal{ID: userID})
	require.NoError(t, err)

	// Owner baseline subsumes viewer, so the union is the owner set.
	assert.ElementsMatch(t, BasePermissions(RoleOwner), perms)
}

func TestGateAggregatePermissionsNoMemberships(t *testing.T) {
	store := newTestStore(t)
	gate := NewGate(newTestContextResolver(store), nil)

	perms, err := gate.AggregatePermissions(context.Background(), &auth.Principal{ID: uuid.NewString()})
	require.NoError(t, err)
	assert.Empty(t, perms)
}
