package rbac

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles role, permission, and membership persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new RBAC store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateRole inserts a role and its permission links.
func (s *Store) CreateRole(ctx context.Context, role *Role) error {
	if role.ID == "" {
		role.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO roles (id, name, description, organization_id, is_system_role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = tx.ExecContext(ctx, query,
		role.ID,
		role.Name,
		role.Description,
		role.OrganizationID,
		role.IsSystemRole,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create role: %w", err)
	}

	for _, perm := range role.Permissions {
		if err := linkRolePermission(ctx, tx, role.ID, perm); err != nil {
			return err
		}
	}

	for _, parentID := range role.InheritsFrom {
		if err := linkRoleParent(ctx, tx, role.ID, parentID); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role: %w", err)
	}

	role.CreatedAt = now
	role.UpdatedAt = now
	return nil
}

// EnsurePermission inserts a permission definition if it does not exist yet.
func (s *Store) EnsurePermission(ctx context.Context, def PermissionDefinition) error {
	query := `
		INSERT INTO permissions (id, name, resource, action, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO NOTHING
	`
	_, err := s.db.ExecContext(ctx, query, uuid.NewString(), def.Name, def.Resource, def.Action, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure permission %s: %w", def.Name, err)
	}
	return nil
}

// GetRole retrieves a full role by ID, or nil when absent.
func (s *Store) GetRole(ctx context.Context, roleID string) (*Role, error) {
	query := `
		SELECT id, name, description, organization_id, is_system_role, created_at, updated_at
		FROM roles
		WHERE id = $1
	`

	var role Role
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(
		&role.ID,
		&role.Name,
		&role.Description,
		&role.OrganizationID,
		&role.IsSystemRole,
		&role.CreatedAt,
		&role.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role: %w", err)
	}

	if role.Permissions, err = s.rolePermissions(ctx, role.ID); err != nil {
		return nil, err
	}
	if role.InheritsFrom, err = s.roleParentIDs(ctx, role.ID); err != nil {
		return nil, err
	}
	return &role, nil
}

// GetRoleByName retrieves an organization's role by name, or nil when absent.
func (s *Store) GetRoleByName(ctx context.Context, organizationID, name string) (*Role, error) {
	query := `
		SELECT id
		FROM roles
		WHERE organization_id = $1 AND name = $2
	`

	var roleID string
	err := s.db.QueryRowContext(ctx, query, organizationID, name).Scan(&roleID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role by name: %w", err)
	}
	return s.GetRole(ctx, roleID)
}

// GetRoleNode loads a role as the inheritance resolver sees it: its own
// permission names plus each direct parent together with that parent's
// permission names. Returns nil when the role does not exist.
func (s *Store) GetRoleNode(ctx context.Context, roleID string) (*RoleNode, error) {
	query := `
		SELECT id, name
		FROM roles
		WHERE id = $1
	`

	var node RoleNode
	err := s.db.QueryRowContext(ctx, query, roleID).Scan(&node.ID, &node.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get role node: %w", err)
	}

	if node.Permissions, err = s.rolePermissions(ctx, node.ID); err != nil {
		return nil, err
	}

	parentIDs, err := s.roleParentIDs(ctx, node.ID)
	if err != nil {
		return nil, err
	}
	for _, parentID := range parentIDs {
		perms, err := s.rolePermissions(ctx, parentID)
		if err != nil {
			return nil, err
		}
		node.Parents = append(node.Parents, RoleEdge{ID: parentID, Permissions: perms})
	}

	return &node, nil
}

// AddRolePermission links an existing permission name to a role.
func (s *Store) AddRolePermission(ctx context.Context, roleID, permissionName string) error {
	return linkRolePermission(ctx, s.db, roleID, permissionName)
}

// AddRoleParent records a direct inheritance edge from roleID to parentID.
// The graph is not validated here; traversal tolerates cycles and dangling
// parents.
func (s *Store) AddRoleParent(ctx context.Context, roleID, parentID string) error {
	return linkRoleParent(ctx, s.db, roleID, parentID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func linkRolePermission(ctx context.Context, ex execer, roleID, permissionName string) error {
	query := `
		INSERT INTO role_permissions (role_id, permission_id)
		SELECT $1, p.id FROM permissions p WHERE p.name = $2
		ON CONFLICT (role_id, permission_id) DO NOTHING
	`
	if _, err := ex.ExecContext(ctx, query, roleID, permissionName); err != nil {
		return fmt.Errorf("failed to link permission %s: %w", permissionName, err)
	}
	return nil
}

func linkRoleParent(ctx context.Context, ex execer, roleID, parentID string) error {
	query := `
		INSERT INTO role_inheritance (role_id, parent_role_id)
		VALUES ($1, $2)
		ON CONFLICT (role_id, parent_role_id) DO NOTHING
	`
	if _, err := ex.ExecContext(ctx, query, roleID, parentID); err != nil {
		return fmt.Errorf("failed to link parent role: %w", err)
	}
	return nil
}

func (s *Store) rolePermissions(ctx context.Context, roleID string) ([]string, error) {
	query := `
		SELECT p.name
		FROM permissions p
		JOIN role_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = $1
		ORDER BY p.name ASC
	`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *Store) roleParentIDs(ctx context.Context, roleID string) ([]string, error) {
	query := `
		SELECT parent_role_id
		FROM role_inheritance
		WHERE role_id = $1
		ORDER BY parent_role_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list parent roles: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan parent role: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateMembership inserts a membership row. The unique constraint on
// (user_id, organization_id) surfaces as an error here; callers that need
// the invite-twice semantics check for an existing row first.
func (s *Store) CreateMembership(ctx context.Context, m *Membership) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO memberships (id, user_id, organization_id, role_id, is_active, invited_pending, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.UserID,
		m.OrganizationID,
		m.RoleID,
		m.IsActive,
		m.InvitedPending,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create membership: %w", err)
	}

	m.CreatedAt = now
	m.UpdatedAt = now
	return nil
}

// GetMembership retrieves a membership by ID, or nil when absent.
func (s *Store) GetMembership(ctx context.Context, membershipID string) (*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role_id, is_active, invited_pending, created_at, updated_at
		FROM memberships
		WHERE id = $1
	`
	return s.queryMembership(ctx, query, membershipID)
}

// MembershipFor retrieves the unique membership for a (user, organization)
// pair in any lifecycle state, or nil when absent.
func (s *Store) MembershipFor(ctx context.Context, userID, organizationID string) (*Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role_id, is_active, invited_pending, created_at, updated_at
		FROM memberships
		WHERE user_id = $1 AND organization_id = $2
	`
	return s.queryMembership(ctx, query, userID, organizationID)
}

// ActiveMembership retrieves the accepted membership for a (user,
// organization) pair. Pending rows, deactivated rows, and memberships in
// deactivated organizations do not qualify.
func (s *Store) ActiveMembership(ctx context.Context, userID, organizationID string) (*Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role_id, m.is_active, m.invited_pending, m.created_at, m.updated_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.is_active = true
		WHERE m.user_id = $1 AND m.organization_id = $2 AND m.is_active = true AND m.invited_pending = false
	`
	return s.queryMembership(ctx, query, userID, organizationID)
}

// ActiveMemberships lists every accepted membership a user holds in an
// active organization, ordered by creation time for stable inference.
func (s *Store) ActiveMemberships(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT m.id, m.user_id, m.organization_id, m.role_id, m.is_active, m.invited_pending, m.created_at, m.updated_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id AND o.is_active = true
		WHERE m.user_id = $1 AND m.is_active = true AND m.invited_pending = false
		ORDER BY m.created_at ASC
	`
	return s.queryMemberships(ctx, query, userID)
}

// PendingInvitations lists a user's pending memberships.
func (s *Store) PendingInvitations(ctx context.Context, userID string) ([]Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role_id, is_active, invited_pending, created_at, updated_at
		FROM memberships
		WHERE user_id = $1 AND invited_pending = true
		ORDER BY created_at ASC
	`
	return s.queryMemberships(ctx, query, userID)
}

// OrganizationMemberships lists every membership in an organization,
// pending rows included. Callers apply visibility rules.
func (s *Store) OrganizationMemberships(ctx context.Context, organizationID string) ([]Membership, error) {
	query := `
		SELECT id, user_id, organization_id, role_id, is_active, invited_pending, created_at, updated_at
		FROM memberships
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`
	return s.queryMemberships(ctx, query, organizationID)
}

// ActivateMembership flips a pending membership to active. The pending
// predicate is part of the update so a double accept is a no-op.
func (s *Store) ActivateMembership(ctx context.Context, membershipID string) error {
	query := `
		UPDATE memberships
		SET is_active = true, invited_pending = false, updated_at = $1
		WHERE id = $2 AND invited_pending = true
	`
	if _, err := s.db.ExecContext(ctx, query, time.Now().UTC(), membershipID); err != nil {
		return fmt.Errorf("failed to activate membership: %w", err)
	}
	return nil
}

// UpdateMembershipRole changes the role a membership confers.
func (s *Store) UpdateMembershipRole(ctx context.Context, membershipID, roleID string) error {
	query := `
		UPDATE memberships
		SET role_id = $1, updated_at = $2
		WHERE id = $3
	`
	if _, err := s.db.ExecContext(ctx, query, roleID, time.Now().UTC(), membershipID); err != nil {
		return fmt.Errorf("failed to update membership role: %w", err)
	}
	return nil
}

// DeleteMembership removes a membership row. Declining an invitation is a
// hard delete so the pair can be re-invited later.
func (s *Store) DeleteMembership(ctx context.Context, membershipID string) error {
	query := `DELETE FROM memberships WHERE id = $1`
	if _, err := s.db.ExecContext(ctx, query, membershipID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// ExpirePendingInvitations deletes pending memberships created before the
// cutoff. Used by maintenance jobs; returns the number removed.
func (s *Store) ExpirePendingInvitations(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM memberships WHERE invited_pending = true AND created_at < $1`
	res, err := s.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to expire pending invitations: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count expired invitations: %w", err)
	}
	return n, nil
}

func (s *Store) queryMembership(ctx context.Context, query string, args ...interface{}) (*Membership, error) {
	var m Membership
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&m.ID,
		&m.UserID,
		&m.OrganizationID,
		&m.RoleID,
		&m.IsActive,
		&m.InvitedPending,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return &m, nil
}

func (s *Store) queryMemberships(ctx context.Context, query string, args ...interface{}) ([]Membership, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []Membership
	for rows.Next() {
		var m Membership
		err := rows.Scan(
			&m.ID,
			&m.UserID,
			&m.OrganizationID,
			&m.RoleID,
			&m.IsActive,
			&m.InvitedPending,
			&m.CreatedAt,
			&m.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	return memberships, rows.Err()
}
