package orgs

import (
	"context"
	"fmt"

	"github.com/taskhive/taskhive/pkg/rbac"
)

// EnsureSystemRoles provisions the owner, admin, and viewer roles for an
// organization, together with the permission catalog. Safe to call more
// than once; existing roles are left untouched.
//
// The roles form an inheritance chain (owner inherits admin, admin
// inherits viewer) with each role carrying only the grants its baseline
// adds over its parent. The resolver's baseline merge keeps the chain
// honest even if the stored graph drifts.
func (s *Service) EnsureSystemRoles(ctx context.Context, orgID string) error {
	for _, def := range rbac.Definitions() {
		if err := s.rbacStore.EnsurePermission(ctx, def); err != nil {
			return err
		}
	}

	var parentID string
	for _, name := range systemRoleOrder() {
		existing, err := s.rbacStore.GetRoleByName(ctx, orgID, name)
		if err != nil {
			return err
		}
		if existing != nil {
			parentID = existing.ID
			continue
		}

		role := &rbac.Role{
			Name:           name,
			Description:    systemRoleDescription(name),
			OrganizationID: orgID,
			Permissions:    permissionsOver(name, parentOf(name)),
			IsSystemRole:   true,
		}
		if parentID != "" {
			role.InheritsFrom = []string{parentID}
		}
		if err := s.rbacStore.CreateRole(ctx, role); err != nil {
			return fmt.Errorf("failed to provision role %s: %w", name, err)
		}
		parentID = role.ID
	}
	return nil
}

// systemRoleOrder lists roles bottom-up so each can inherit the previous.
func systemRoleOrder() []string {
	return []string{rbac.RoleViewer, rbac.RoleAdmin, rbac.RoleOwner}
}

func parentOf(name string) string {
	switch name {
	case rbac.RoleAdmin:
		return rbac.RoleViewer
	case rbac.RoleOwner:
		return rbac.RoleAdmin
	default:
		return ""
	}
}

// permissionsOver returns the baseline grants of a role minus those
// already carried by its parent.
func permissionsOver(name, parent string) []string {
	base := rbac.BasePermissions(name)
	if parent == "" {
		return base
	}
	inherited := make(map[string]struct{})
	for _, p := range rbac.BasePermissions(parent) {
		inherited[p] = struct{}{}
	}
	var out []string
	for _, p := range base {
		if _, ok := inherited[p]; !ok {
			out = append(out, p)
		}
	}
	return out
}

func systemRoleDescription(name string) string {
	switch name {
	case rbac.RoleOwner:
		return "Full control of the organization"
	case rbac.RoleAdmin:
		return "Manage tasks and view members"
	case rbac.RoleViewer:
		return "View tasks and update assigned work"
	default:
		return ""
	}
}
