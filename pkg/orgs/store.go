package orgs

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles organization persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new organization store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateOrganization inserts an organization row. New organizations are
// always active.
func (s *Store) CreateOrganization(ctx context.Context, org *Organization) error {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	org.IsActive = true
	now := time.Now().UTC()

	query := `
		INSERT INTO organizations (id, name, is_active, created_by, created_at, updated_at)
		VALUES ($1, $2, true, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, org.ID, org.Name, org.CreatedBy, now, now)
	if err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}

	org.CreatedAt = now
	org.UpdatedAt = now
	return nil
}

// GetOrganization retrieves an organization by ID, or nil when absent.
func (s *Store) GetOrganization(ctx context.Context, orgID string) (*Organization, error) {
	query := `
		SELECT id, name, is_active, created_by, created_at, updated_at
		FROM organizations
		WHERE id = $1
	`

	var org Organization
	err := s.db.QueryRowContext(ctx, query, orgID).Scan(
		&org.ID,
		&org.Name,
		&org.IsActive,
		&org.CreatedBy,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}
	return &org, nil
}

// ListOrganizationsForUser lists active organizations where the user
// holds an accepted membership, each carrying the role held there.
func (s *Store) ListOrganizationsForUser(ctx context.Context, userID string) ([]UserOrganization, error) {
	query := `
		SELECT o.id, o.name, o.is_active, o.created_by, o.created_at, o.updated_at, r.name
		FROM organizations o
		JOIN memberships m ON m.organization_id = o.id
		JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 AND m.is_active = true AND m.invited_pending = false
		  AND o.is_active = true
		ORDER BY o.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	defer rows.Close()

	var out []UserOrganization
	for rows.Next() {
		var org UserOrganization
		err := rows.Scan(&org.ID, &org.Name, &org.IsActive, &org.CreatedBy, &org.CreatedAt, &org.UpdatedAt, &org.Role)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		out = append(out, org)
	}
	return out, rows.Err()
}

// ListMembers lists every membership of an organization joined with user
// identity and role name. Visibility filtering happens in the service.
func (s *Store) ListMembers(ctx context.Context, orgID string) ([]Member, error) {
	query := `
		SELECT m.id, u.id, u.email, u.full_name, r.name, m.is_active, m.invited_pending, m.created_at
		FROM memberships m
		JOIN users u ON u.id = m.user_id
		JOIN roles r ON r.id = m.role_id
		WHERE m.organization_id = $1
		ORDER BY m.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		err := rows.Scan(
			&m.MembershipID,
			&m.UserID,
			&m.Email,
			&m.FullName,
			&m.RoleName,
			&m.IsActive,
			&m.Pending,
			&m.JoinedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListInvitationsForUser lists pending memberships joined with
// organization and role names.
func (s *Store) ListInvitationsForUser(ctx context.Context, userID string) ([]Invitation, error) {
	query := `
		SELECT m.id, o.id, o.name, r.name, m.created_at
		FROM memberships m
		JOIN organizations o ON o.id = m.organization_id
		JOIN roles r ON r.id = m.role_id
		WHERE m.user_id = $1 AND m.invited_pending = true
		ORDER BY m.created_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invitations: %w", err)
	}
	defer rows.Close()

	var invitations []Invitation
	for rows.Next() {
		var inv Invitation
		err := rows.Scan(
			&inv.MembershipID,
			&inv.OrganizationID,
			&inv.OrganizationName,
			&inv.RoleName,
			&inv.InvitedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan invitation: %w", err)
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}
