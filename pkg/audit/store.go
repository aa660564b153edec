package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DBLogger persists audit entries to the audit_logs table.
type DBLogger struct {
	db  *sql.DB
	log *slog.Logger
}

// NewDBLogger creates a database-backed audit logger.
func NewDBLogger(db *sql.DB, log *slog.Logger) *DBLogger {
	if log == nil {
		log = slog.Default()
	}
	return &DBLogger{db: db, log: log}
}

// Log writes one entry. The write error is returned for callers that
// care and logged here for the ones that do not.
func (l *DBLogger) Log(ctx context.Context, entry *Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal audit details: %w", err)
		}
	}

	query := `
		INSERT INTO audit_logs (id, user_id, organization_id, action, resource, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := l.db.ExecContext(ctx, query,
		entry.ID,
		entry.UserID,
		entry.OrganizationID,
		string(entry.Action),
		string(entry.Resource),
		entry.ResourceID,
		nullableString(detailsJSON),
		entry.Timestamp,
	)
	if err != nil {
		l.log.ErrorContext(ctx, "audit write failed",
			"action", entry.Action,
			"resource", entry.Resource,
			"error", err)
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (l *DBLogger) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	query := `
		SELECT id, user_id, organization_id, action, resource, resource_id, details, created_at
		FROM audit_logs
		WHERE organization_id = $1
	`
	args := []interface{}{filter.OrganizationID}

	if filter.UserID != "" {
		args = append(args, filter.UserID)
		query += fmt.Sprintf(" AND user_id = $%d", len(args))
	}
	if filter.Action != "" {
		args = append(args, string(filter.Action))
		query += fmt.Sprintf(" AND action = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var action, resource string
		var details sql.NullString

		err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.OrganizationID,
			&action,
			&resource,
			&entry.ResourceID,
			&details,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entry.Action = Action(action)
		entry.Resource = Resource(resource)

		if details.Valid && details.String != "" {
			if err := json.Unmarshal([]byte(details.String), &entry.Details); err != nil {
				// A corrupt details blob should not hide the entry.
				entry.Details = map[string]interface{}{"_raw": details.String}
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// Purge deletes entries older than the cutoff. Returns the number removed.
func (l *DBLogger) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge audit entries: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged entries: %w", err)
	}
	return n, nil
}

func nullableString(b []byte) interface{} {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
