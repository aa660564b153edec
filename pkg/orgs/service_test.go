package orgs

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/storage"
)

type testEnv struct {
	db        *sql.DB
	svc       *Service
	rbacStore *rbac.Store
	users     *auth.UserStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, storage.Migrate(context.Background(), db))

	rbacStore := rbac.NewStore(db)
	users := auth.NewUserStore(db)
	return &testEnv{
		db:        db,
		svc:       NewService(NewStore(db), rbacStore, users, nil),
		rbacStore: rbacStore,
		users:     users,
	}
}

func (e *testEnv) createUser(t *testing.T, email string) *auth.Principal {
	t.Helper()
	user := &auth.User{Email: email, PasswordHash: "x", IsActive: true}
	require.NoError(t, e.users.CreateUser(context.Background(), user))
	return &auth.Principal{ID: user.ID, Email: user.Email}
}

func (e *testEnv) createOrgWithOwner(t *testing.T, owner *auth.Principal) *Organization {
	t.Helper()
	org, err := e.svc.CreateOrganization(context.Background(), owner, "acme")
	require.NoError(t, err)
	return org
}

// authzFor builds the resolved context a gate would produce for a member.
func (e *testEnv) authzFor(t *testing.T, userID, orgID string) *rbac.Context {
	t.Helper()
	cr := rbac.NewContextResolver(e.rbacStore, rbac.NewResolver(e.rbacStore))
	authz, err := cr.ResolveContext(context.Background(), &auth.Principal{ID: userID}, orgID)
	require.NoError(t, err)
	return authz
}

func denialKind(t *testing.T, err error) rbac.DenialKind {
	t.Helper()
	d, ok := rbac.AsDenial(err)
	require.True(t, ok, "expected a denial, got %v", err)
	return d.Kind
}

func TestCreateOrganizationProvisionsRolesAndOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")

	org := env.createOrgWithOwner(t, owner)

	for _, name := range rbac.SystemRoleNames() {
		role, err := env.rbacStore.GetRoleByName(ctx, org.ID, name)
		require.NoError(t, err)
		require.NotNil(t, role, "role %s missing", name)
		assert.True(t, role.IsSystemRole)
	}

	m, err := env.rbacStore.ActiveMembership(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.False(t, m.InvitedPending)

	// The chain resolves to the full owner baseline even though each role
	// row only stores its delta over the parent.
	authz := env.authzFor(t, owner.ID, org.ID)
	assert.Equal(t, rbac.RoleOwner, authz.RoleName)
	assert.ElementsMatch(t, rbac.BasePermissions(rbac.RoleOwner), authz.Permissions)
}

func TestEnsureSystemRolesIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	org := env.createOrgWithOwner(t, owner)

	before, err := env.rbacStore.GetRoleByName(ctx, org.ID, rbac.RoleAdmin)
	require.NoError(t, err)

	require.NoError(t, env.svc.EnsureSystemRoles(ctx, org.ID))

	after, err := env.rbacStore.GetRoleByName(ctx, org.ID, rbac.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
}

func TestInviteAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, "dev@example.com", rbac.RoleViewer)
	require.NoError(t, err)
	assert.False(t, result.UserCreated)
	assert.Equal(t, invitee.ID, result.UserID)

	// The invitation is visible to the invitee and nothing else yet.
	invitations, err := env.svc.ListInvitations(ctx, invitee)
	require.NoError(t, err)
	require.Len(t, invitations, 1)
	assert.Equal(t, org.ID, invitations[0].OrganizationID)
	assert.Equal(t, rbac.RoleViewer, invitations[0].RoleName)

	active, err := env.rbacStore.ActiveMembership(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, active, "pending invitation must not confer access")

	require.NoError(t, env.svc.AcceptInvitation(ctx, invitee, result.MembershipID))

	active, err = env.rbacStore.ActiveMembership(ctx, invitee.ID, org.ID)
	require.NoError(t, err)
	require.NotNil(t, active)

	authzInvitee := env.authzFor(t, invitee.ID, org.ID)
	assert.Equal(t, rbac.RoleViewer, authzInvitee.RoleName)
}

func TestInviteUnknownEmailCreatesAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, "New.Person@Example.com", rbac.RoleAdmin)
	require.NoError(t, err)
	assert.True(t, result.UserCreated)

	user, err := env.users.GetUserByEmail(ctx, "new.person@example.com")
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.True(t, user.IsActive)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestInviteConflicts(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)

	_, err = env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	assert.Equal(t, rbac.DenialAlreadyInvited, denialKind(t, err))

	require.NoError(t, env.svc.AcceptInvitation(ctx, invitee, result.MembershipID))

	_, err = env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	assert.Equal(t, rbac.DenialAlreadyMember, denialKind(t, err))
}

func TestInviteRequiresOwner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	admin := env.createUser(t, "admin@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, admin.Email, rbac.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptInvitation(ctx, admin, result.MembershipID))

	adminAuthz := env.authzFor(t, admin.ID, org.ID)
	_, err = env.svc.InviteUser(ctx, adminAuthz, admin, "x@example.com", rbac.RoleViewer)
	assert.Equal(t, rbac.DenialNotPermitted, denialKind(t, err))
}

func TestInviteCannotGrantOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	_, err := env.svc.InviteUser(context.Background(), authz, owner, "x@example.com", rbac.RoleOwner)
	assert.Equal(t, rbac.DenialNotPermitted, denialKind(t, err))
}

func TestAcceptSomeoneElsesInvitation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	bystander := env.createUser(t, "other@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)

	// Reported as missing, not forbidden, so membership IDs cannot be
	// probed.
	err = env.svc.AcceptInvitation(ctx, bystander, result.MembershipID)
	assert.Equal(t, rbac.DenialNotFound, denialKind(t, err))

	err = env.svc.DeclineInvitation(ctx, bystander, result.MembershipID)
	assert.Equal(t, rbac.DenialNotFound, denialKind(t, err))
}

func TestDeclineAllowsReinvite(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, env.svc.DeclineInvitation(ctx, invitee, result.MembershipID))

	// Declining removed the row entirely, so a fresh invitation works.
	_, err = env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)

	// The declined invitation is gone for good.
	err = env.svc.AcceptInvitation(ctx, invitee, result.MembershipID)
	assert.Equal(t, rbac.DenialNotFound, denialKind(t, err))
}

func TestAssignAdminAndBack(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, member.Email, rbac.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptInvitation(ctx, member, result.MembershipID))

	require.NoError(t, env.svc.AssignAdmin(ctx, authz, owner, member.ID))
	assert.Equal(t, rbac.RoleAdmin, env.authzFor(t, member.ID, org.ID).RoleName)

	// Re-assigning the same role is a no-op.
	require.NoError(t, env.svc.AssignAdmin(ctx, authz, owner, member.ID))

	require.NoError(t, env.svc.AssignViewer(ctx, authz, owner, member.ID))
	assert.Equal(t, rbac.RoleViewer, env.authzFor(t, member.ID, org.ID).RoleName)
}

func TestAssignOwnerRoleIsProtected(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	err := env.svc.AssignViewer(context.Background(), authz, owner, owner.ID)
	assert.Equal(t, rbac.DenialNotPermitted, denialKind(t, err))
}

func TestAssignRequiresActiveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	_, err := env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)

	// Still pending, so not assignable.
	err = env.svc.AssignAdmin(ctx, authz, owner, invitee.ID)
	assert.Equal(t, rbac.DenialNotFound, denialKind(t, err))

	err = env.svc.AssignAdmin(ctx, authz, owner, "no-such-user")
	assert.Equal(t, rbac.DenialNotFound, denialKind(t, err))
}

func TestListMembersVisibility(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	viewer := env.createUser(t, "viewer@example.com")
	pending := env.createUser(t, "pending@example.com")
	org := env.createOrgWithOwner(t, owner)
	ownerAuthz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, ownerAuthz, owner, viewer.Email, rbac.RoleViewer)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptInvitation(ctx, viewer, result.MembershipID))

	_, err = env.svc.InviteUser(ctx, ownerAuthz, owner, pending.Email, rbac.RoleAdmin)
	require.NoError(t, err)

	// The owner sees everyone, pending invitations included.
	members, err := env.svc.ListMembers(ctx, ownerAuthz)
	require.NoError(t, err)
	assert.Len(t, members, 3)

	// A viewer sees only accepted viewers.
	viewerAuthz := env.authzFor(t, viewer.ID, org.ID)
	members, err = env.svc.ListMembers(ctx, viewerAuthz)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, viewer.ID, members[0].UserID)
}

func TestListOrganizationsOnlyAccepted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	invitee := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	_, err := env.svc.InviteUser(ctx, authz, owner, invitee.Email, rbac.RoleViewer)
	require.NoError(t, err)

	orgs, err := env.svc.ListOrganizations(ctx, invitee)
	require.NoError(t, err)
	assert.Empty(t, orgs, "pending invitation must not list the organization")

	orgs, err = env.svc.ListOrganizations(ctx, owner)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, org.ID, orgs[0].ID)
	assert.Equal(t, rbac.RoleOwner, orgs[0].Role)
}

func TestListOrganizationsCarriesMemberRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	member := env.createUser(t, "dev@example.com")
	org := env.createOrgWithOwner(t, owner)
	authz := env.authzFor(t, owner.ID, org.ID)

	result, err := env.svc.InviteUser(ctx, authz, owner, member.Email, rbac.RoleAdmin)
	require.NoError(t, err)
	require.NoError(t, env.svc.AcceptInvitation(ctx, member, result.MembershipID))

	orgs, err := env.svc.ListOrganizations(ctx, member)
	require.NoError(t, err)
	require.Len(t, orgs, 1)
	assert.Equal(t, org.ID, orgs[0].ID)
	assert.Equal(t, rbac.RoleAdmin, orgs[0].Role)
	assert.True(t, orgs[0].IsActive)
}

func TestDeactivatedOrganizationIsInvisible(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner := env.createUser(t, "owner@example.com")
	org := env.createOrgWithOwner(t, owner)

	_, err := env.db.Exec(`UPDATE organizations SET is_active = false WHERE id = $1`, org.ID)
	require.NoError(t, err)

	orgs, err := env.svc.ListOrganizations(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, orgs, "deactivated organizations must not be listed")

	// The membership row survives but confers no access.
	m, err := env.rbacStore.ActiveMembership(ctx, owner.ID, org.ID)
	require.NoError(t, err)
	assert.Nil(t, m)
}
