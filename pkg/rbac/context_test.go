package rbac

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/auth"
)

func newTestContextResolver(store *Store) *ContextResolver {
	return NewContextResolver(store, NewResolver(store))
}

func TestResolveContextNoMemberships(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)

	_, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: uuid.NewString()}, "")

	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)
}

func TestResolveContextInfersSingleOrg(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleAdmin, nil, nil)
	userID := uuid.NewString()
	m := createTestMembership(t, store, userID, orgID, role.ID, true, false)

	authz, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, "")
	require.NoError(t, err)

	assert.Equal(t, orgID, authz.OrganizationID)
	assert.Equal(t, m.ID, authz.MembershipID)
	assert.Equal(t, RoleAdmin, authz.RoleName)
	assert.True(t, authz.HasPermission(PermTasksCreate))
	assert.False(t, authz.HasPermission(PermUsersInvite))
}

func TestResolveContextAmbiguousWithoutHint(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)

	userID := uuid.NewString()
	for i := 0; i < 2; i++ {
		orgID := createTestOrg(t, store)
		role := createTestRole(t, store, orgID, RoleViewer, nil, nil)
		createTestMembership(t, store, userID, orgID, role.ID, true, false)
	}

	_, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, "")

	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialAmbiguousOrg, d.Kind)
}

func TestResolveContextHonorsHint(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)
	ctx := context.Background()

	userID := uuid.NewString()
	var orgIDs []string
	roles := []string{RoleOwner, RoleViewer}
	for i := 0; i < 2; i++ {
		orgID := createTestOrg(t, store)
		role := createTestRole(t, store, orgID, roles[i], nil, nil)
		createTestMembership(t, store, userID, orgID, role.ID, true, false)
		orgIDs = append(orgIDs, orgID)
	}

	authz, err := cr.ResolveContext(ctx, &auth.Principal{ID: userID}, orgIDs[1])
	require.NoError(t, err)
	assert.Equal(t, orgIDs[1], authz.OrganizationID)
	assert.Equal(t, RoleViewer, authz.RoleName)
}

func TestResolveContextHintWithoutMembership(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleOwner, nil, nil)
	userID := uuid.NewString()
	createTestMembership(t, store, userID, orgID, role.ID, true, false)

	// Hinting an organization the caller does not belong to, including
	// one that does not exist, is the same denial.
	_, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, uuid.NewString())

	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)
}

func TestResolveContextIgnoresDeactivatedOrganization(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)
	ctx := context.Background()

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleOwner, nil, nil)
	userID := uuid.NewString()
	createTestMembership(t, store, userID, orgID, role.ID, true, false)

	_, err := cr.ResolveContext(ctx, &auth.Principal{ID: userID}, orgID)
	require.NoError(t, err)

	_, err = store.db.Exec(`UPDATE organizations SET is_active = false WHERE id = $1`, orgID)
	require.NoError(t, err)

	// An accepted membership in a deactivated organization confers no
	// access, hinted or inferred.
	_, err = cr.ResolveContext(ctx, &auth.Principal{ID: userID}, orgID)
	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)

	_, err = cr.ResolveContext(ctx, &auth.Principal{ID: userID}, "")
	d, ok = AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)
}

func TestResolveContextIgnoresPendingMembership(t *testing.T) {
	store := newTestStore(t)
	cr := newTestContextResolver(store)

	orgID := createTestOrg(t, store)
	role := createTestRole(t, store, orgID, RoleViewer, nil, nil)
	userID := uuid.NewString()
	createTestMembership(t, store, userID, orgID, role.ID, false, true)

	_, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, "")
	d, ok := AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)

	_, err = cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, orgID)
	d, ok = AsDenial(err)
	require.True(t, ok)
	assert.Equal(t, DenialNotAMember, d.Kind)
}
