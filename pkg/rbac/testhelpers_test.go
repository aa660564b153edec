package rbac

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive/pkg/storage"
)

// newTestStore opens an in-memory database with the full schema and the
// permission catalog loaded. One connection only, so every query sees the
// same memory database.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, storage.Migrate(ctx, db))

	store := NewStore(db)
	for _, def := range Definitions() {
		require.NoError(t, store.EnsurePermission(ctx, def))
	}
	return store
}

func createTestOrg(t *testing.T, store *Store) string {
	t.Helper()

	orgID := uuid.NewString()
	now := time.Now().UTC()
	_, err := store.db.Exec(
		`INSERT INTO organizations (id, name, created_by, created_at, updated_at) VALUES ($1, $2, $3, $4, $5)`,
		orgID, "test org", uuid.NewString(), now, now,
	)
	require.NoError(t, err)
	return orgID
}

func createTestRole(t *testing.T, store *Store, orgID, name string, perms, parents []string) *Role {
	t.Helper()

	role := &Role{
		Name:           name,
		OrganizationID: orgID,
		Permissions:    perms,
		InheritsFrom:   parents,
	}
	require.NoError(t, store.CreateRole(context.Background(), role))
	return role
}

func createTestMembership(t *testing.T, store *Store, userID, orgID, roleID string, active, pending bool) *Membership {
	t.Helper()

	m := &Membership{
		UserID:         userID,
		OrganizationID: orgID,
		RoleID:         roleID,
		IsActive:       active,
		InvitedPending: pending,
	}
	require.NoError(t, store.CreateMembership(context.Background(), m))
	return m
}
