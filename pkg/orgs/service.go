package orgs

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskhive/taskhive/pkg/audit"
	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/rbac"
	"github.com/taskhive/taskhive/pkg/validation"
)

// Service implements organization, membership, and invitation operations.
// Policy checks live here, behind the permission gate: the gate decides
// whether a request may reach an operation at all, the service enforces
// the finer rules.
type Service struct {
	store     *Store
	rbacStore *rbac.Store
	users     *auth.UserStore
	auditor   audit.Logger
}

// NewService creates the organization service. auditor may be nil.
func NewService(store *Store, rbacStore *rbac.Store, users *auth.UserStore, auditor audit.Logger) *Service {
	if auditor == nil {
		auditor = audit.NopLogger{}
	}
	return &Service{store: store, rbacStore: rbacStore, users: users, auditor: auditor}
}

// CreateOrganization creates an organization, provisions its system
// roles, and makes the creator an active owner.
func (s *Service) CreateOrganization(ctx context.Context, principal *auth.Principal, name string) (*Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validation.New("organization name is required")
	}

	org := &Organization{Name: name, CreatedBy: principal.ID}
	if err := s.store.CreateOrganization(ctx, org); err != nil {
		return nil, err
	}

	if err := s.EnsureSystemRoles(ctx, org.ID); err != nil {
		return nil, err
	}

	ownerRole, err := s.rbacStore.GetRoleByName(ctx, org.ID, rbac.RoleOwner)
	if err != nil {
		return nil, err
	}
	if ownerRole == nil {
		return nil, fmt.Errorf("owner role missing after provisioning")
	}

	// The creator never goes through the invitation flow.
	membership := &rbac.Membership{
		UserID:         principal.ID,
		OrganizationID: org.ID,
		RoleID:         ownerRole.ID,
		IsActive:       true,
		InvitedPending: false,
	}
	if err := s.rbacStore.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, principal.ID, org.ID, audit.ActionOrgCreate, audit.ResourceOrganization, org.ID, map[string]interface{}{
		"name": org.Name,
	})
	return org, nil
}

// ListOrganizations lists active organizations the caller belongs to,
// with the role held in each.
func (s *Service) ListOrganizations(ctx context.Context, principal *auth.Principal) ([]UserOrganization, error) {
	return s.store.ListOrganizationsForUser(ctx, principal.ID)
}

// ListMembers lists an organization's members, filtered by what the
// caller is allowed to see: owners and admins see everyone including
// pending invitations, everyone else sees accepted viewers only.
func (s *Service) ListMembers(ctx context.Context, authz *rbac.Context) ([]Member, error) {
	members, err := s.store.ListMembers(ctx, authz.OrganizationID)
	if err != nil {
		return nil, err
	}
	if authz.IsOwnerOrAdmin() {
		return members, nil
	}

	visible := make([]Member, 0, len(members))
	for _, m := range members {
		if m.RoleName == rbac.RoleViewer && m.IsActive && !m.Pending {
			visible = append(visible, m)
		}
	}
	return visible, nil
}

// InviteUser invites an email address into the organization with the
// given role. Only the owner may invite. Inviting an unknown email
// creates the account with a temporary password.
func (s *Service) InviteUser(ctx context.Context, authz *rbac.Context, actor *auth.Principal, email, roleName string) (*InviteResult, error) {
	if !authz.IsOwner() {
		return nil, rbac.Deny(rbac.DenialNotPermitted, "only the organization owner may invite users")
	}
	if !rbac.IsAssignableRole(roleName) {
		return nil, rbac.Denyf(rbac.DenialNotPermitted, "role %s cannot be granted by invitation", roleName)
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, validation.New("email is required")
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	created := false
	if user == nil {
		tempPassword, err := auth.GenerateTemporaryPassword()
		if err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(tempPassword)
		if err != nil {
			return nil, err
		}
		user = &auth.User{Email: email, PasswordHash: hash, IsActive: true}
		if err := s.users.CreateUser(ctx, user); err != nil {
			return nil, err
		}
		created = true
	}

	existing, err := s.rbacStore.MembershipFor(ctx, user.ID, authz.OrganizationID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.InvitedPending {
			return nil, rbac.Deny(rbac.DenialAlreadyInvited, "user already has a pending invitation")
		}
		return nil, rbac.Deny(rbac.DenialAlreadyMember, "user is already a member")
	}

	role, err := s.rbacStore.GetRoleByName(ctx, authz.OrganizationID, roleName)
	if err != nil {
		return nil, err
	}
	if role == nil {
		return nil, rbac.Denyf(rbac.DenialNotFound, "role %s not found", roleName)
	}

	membership := &rbac.Membership{
		UserID:         user.ID,
		OrganizationID: authz.OrganizationID,
		RoleID:         role.ID,
		IsActive:       false,
		InvitedPending: true,
	}
	if err := s.rbacStore.CreateMembership(ctx, membership); err != nil {
		return nil, err
	}

	audit.Record(ctx, s.auditor, actor.ID, authz.OrganizationID, audit.ActionUserInvite, audit.ResourceMembership, membership.ID, map[string]interface{}{
		"email": email,
		"role":  roleName,
	})
	return &InviteResult{MembershipID: membership.ID, UserID: user.ID, UserCreated: created}, nil
}

// ListInvitations lists the caller's pending invitations.
func (s *Service) ListInvitations(ctx context.Context, principal *auth.Principal) ([]Invitation, error) {
	return s.store.ListInvitationsForUser(ctx, principal.ID)
}

// AcceptInvitation activates a pending membership. Only the invited user
// may accept, and only while the invitation is pending.
func (s *Service) AcceptInvitation(ctx context.Context, principal *auth.Principal, membershipID string) error {
	membership, err := s.invitationFor(ctx, principal, membershipID)
	if err != nil {
		return err
	}

	if err := s.rbacStore.ActivateMembership(ctx, membership.ID); err != nil {
		return err
	}

	audit.Record(ctx, s.auditor, principal.ID, membership.OrganizationID, audit.ActionInviteAccept, audit.ResourceMembership, membership.ID, nil)
	return nil
}

// DeclineInvitation removes a pending membership entirely, so the user
// can be invited again later.
func (s *Service) DeclineInvitation(ctx context.Context, principal *auth.Principal, membershipID string) error {
	membership, err := s.invitationFor(ctx, principal, membershipID)
	if err != nil {
		return err
	}

	if err := s.rbacStore.DeleteMembership(ctx, membership.ID); err != nil {
		return err
	}

	audit.Record(ctx, s.auditor, principal.ID, membership.OrganizationID, audit.ActionInviteDecline, audit.ResourceMembership, membership.ID, nil)
	return nil
}

func (s *Service) invitationFor(ctx context.Context, principal *auth.Principal, membershipID string) (*rbac.Membership, error) {
	membership, err := s.rbacStore.GetMembership(ctx, membershipID)
	if err != nil {
		return nil, err
	}
	if membership == nil || !membership.InvitedPending {
		return nil, rbac.Deny(rbac.DenialNotFound, "invitation not found")
	}
	if membership.UserID != principal.ID {
		// The invitation exists but belongs to someone else. Report it
		// as missing so invitation IDs cannot be probed.
		return nil, rbac.Deny(rbac.DenialNotFound, "invitation not found")
	}
	return membership, nil
}

// AssignAdmin promotes a member to admin. Owner only, idempotent.
func (s *Service) AssignAdmin(ctx context.Context, authz *rbac.Context, actor *auth.Principal, targetUserID string) error {
	return s.assignRole(ctx, authz, actor, targetUserID, rbac.RoleAdmin, audit.ActionRoleAssignAdmin)
}

// AssignViewer demotes a member to viewer. Owner only, idempotent.
func (s *Service) AssignViewer(ctx context.Context, authz *rbac.Context, actor *auth.Principal, targetUserID string) error {
	return s.assignRole(ctx, authz, actor, targetUserID, rbac.RoleViewer, audit.ActionRoleAssignViewer)
}

func (s *Service) assignRole(ctx context.Context, authz *rbac.Context, actor *auth.Principal, targetUserID, roleName string, action audit.Action) error {
	// The permission gate already checked users:assign-*; the owner
	// check stays as defense in depth because those permissions are
	// owner-baseline grants that a misconfigured role could leak.
	if !authz.IsOwner() {
		return rbac.Deny(rbac.DenialNotPermitted, "only the organization owner may change member roles")
	}

	membership, err := s.rbacStore.ActiveMembership(ctx, targetUserID, authz.OrganizationID)
	if err != nil {
		return err
	}
	if membership == nil {
		return rbac.Deny(rbac.DenialNotFound, "user is not an active member")
	}

	currentRole, err := s.rbacStore.GetRole(ctx, membership.RoleID)
	if err != nil {
		return err
	}
	if currentRole != nil && currentRole.Name == rbac.RoleOwner {
		return rbac.Deny(rbac.DenialNotPermitted, "the owner role cannot be reassigned")
	}
	if currentRole != nil && currentRole.Name == roleName {
		// Already holds the target role.
		return nil
	}

	role, err := s.rbacStore.GetRoleByName(ctx, authz.OrganizationID, roleName)
	if err != nil {
		return err
	}
	if role == nil {
		return rbac.Denyf(rbac.DenialNotFound, "role %s not found", roleName)
	}

	if err := s.rbacStore.UpdateMembershipRole(ctx, membership.ID, role.ID); err != nil {
		return err
	}

	audit.Record(ctx, s.auditor, actor.ID, authz.OrganizationID, action, audit.ResourceMembership, membership.ID, map[string]interface{}{
		"user_id": targetUserID,
		"role":    roleName,
	})
	return nil
}
