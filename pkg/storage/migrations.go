package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations are applied in order and must stay append-only. The DDL is
// restricted to the dialect both postgres and sqlite accept.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		full_name     TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		is_active     BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL,
		last_login_at TIMESTAMP
	)`,

	// Organizations are soft-deactivated, never deleted.
	`CREATE TABLE IF NOT EXISTS organizations (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT TRUE,
		created_by TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS roles (
		id              TEXT PRIMARY KEY,
		name            TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		is_system_role  BOOLEAN NOT NULL DEFAULT FALSE,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		UNIQUE (organization_id, name)
	)`,

	`CREATE TABLE IF NOT EXISTS permissions (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		resource   TEXT NOT NULL,
		action     TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS role_permissions (
		role_id       TEXT NOT NULL REFERENCES roles(id),
		permission_id TEXT NOT NULL REFERENCES permissions(id),
		PRIMARY KEY (role_id, permission_id)
	)`,

	// parent_role_id intentionally carries no foreign key: the graph may
	// reference roles that were deleted, and traversal skips them.
	`CREATE TABLE IF NOT EXISTS role_inheritance (
		role_id        TEXT NOT NULL REFERENCES roles(id),
		parent_role_id TEXT NOT NULL,
		PRIMARY KEY (role_id, parent_role_id)
	)`,

	`CREATE TABLE IF NOT EXISTS memberships (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id),
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		role_id         TEXT NOT NULL REFERENCES roles(id),
		is_active       BOOLEAN NOT NULL DEFAULT FALSE,
		invited_pending BOOLEAN NOT NULL DEFAULT TRUE,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL,
		UNIQUE (user_id, organization_id)
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id              TEXT PRIMARY KEY,
		organization_id TEXT NOT NULL REFERENCES organizations(id),
		title           TEXT NOT NULL,
		description     TEXT NOT NULL DEFAULT '',
		status          TEXT NOT NULL DEFAULT 'todo',
		priority        TEXT NOT NULL DEFAULT 'medium',
		category        TEXT NOT NULL DEFAULT '',
		tags            TEXT,
		position        INTEGER NOT NULL DEFAULT 0,
		assignee_id     TEXT,
		created_by      TEXT NOT NULL,
		due_date        TIMESTAMP,
		completed_at    TIMESTAMP,
		created_at      TIMESTAMP NOT NULL,
		updated_at      TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS audit_logs (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL,
		organization_id TEXT NOT NULL DEFAULT '',
		action          TEXT NOT NULL,
		resource        TEXT NOT NULL,
		resource_id     TEXT NOT NULL DEFAULT '',
		details         TEXT,
		created_at      TIMESTAMP NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS api_tokens (
		id           TEXT PRIMARY KEY,
		user_id      TEXT NOT NULL REFERENCES users(id),
		token_hash   TEXT NOT NULL UNIQUE,
		token_prefix TEXT NOT NULL,
		name         TEXT NOT NULL DEFAULT '',
		expires_at   TIMESTAMP,
		last_used_at TIMESTAMP,
		created_at   TIMESTAMP NOT NULL,
		revoked_at   TIMESTAMP
	)`,

	`CREATE INDEX IF NOT EXISTS idx_memberships_user ON memberships (user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_memberships_org ON memberships (organization_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_org ON tasks (organization_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_assignee ON tasks (assignee_id)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_org_time ON audit_logs (organization_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_tokens_user ON api_tokens (user_id)`,
}

// Migrate applies all migrations. Statements are idempotent so re-running
// on boot is safe.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
