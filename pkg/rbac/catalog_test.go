package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleBaselinesNest(t *testing.T) {
	owner := BasePermissions(RoleOwner)
	admin := BasePermissions(RoleAdmin)
	viewer := BasePermissions(RoleViewer)

	assert.Subset(t, admin, viewer, "viewer baseline must be contained in admin")
	assert.Subset(t, owner, admin, "admin baseline must be contained in owner")

	assert.NotContains(t, admin, PermUsersInvite)
	assert.NotContains(t, admin, PermAssignAdmin)
	assert.NotContains(t, viewer, PermTasksCreate)
	assert.NotContains(t, viewer, PermTasksDelete)
	assert.NotContains(t, viewer, PermAuditRead)
}

func TestOwnerBaselineCoversCatalog(t *testing.T) {
	owner := BasePermissions(RoleOwner)
	for _, def := range Definitions() {
		assert.Contains(t, owner, def.Name)
	}
}

func TestBasePermissionsReturnsCopy(t *testing.T) {
	first := BasePermissions(RoleViewer)
	first[0] = "mutated"
	assert.NotContains(t, BasePermissions(RoleViewer), "mutated")
}

func TestBasePermissionsUnknownRole(t *testing.T) {
	assert.Nil(t, BasePermissions("quality-engineer"))
}

func TestIsAssignableRole(t *testing.T) {
	assert.True(t, IsAssignableRole(RoleAdmin))
	assert.True(t, IsAssignableRole(RoleViewer))
	assert.False(t, IsAssignableRole(RoleOwner))
	assert.False(t, IsAssignableRole(""))
	assert.False(t, IsAssignableRole("superuser"))
}
