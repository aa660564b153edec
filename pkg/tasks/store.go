package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store handles task persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates a new task store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateTask inserts a task.
func (s *Store) CreateTask(ctx context.Context, task *Task) error {
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	now := time.Now().UTC()

	tagsJSON, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, organization_id, title, description, status, priority, category, tags, position, assignee_id, created_by, due_date, completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		task.ID,
		task.OrganizationID,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.Category,
		tagsJSON,
		task.Position,
		nullIfEmpty(task.AssigneeID),
		task.CreatedBy,
		task.DueDate,
		task.CompletedAt,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	task.CreatedAt = now
	task.UpdatedAt = now
	return nil
}

// GetTask retrieves a task by ID, or nil when absent. The lookup is not
// organization scoped; callers compare OrganizationID themselves to
// produce the right denial.
func (s *Store) GetTask(ctx context.Context, taskID string) (*Task, error) {
	query := `
		SELECT id, organization_id, title, description, status, priority, category, tags, position, assignee_id, created_by, due_date, completed_at, created_at, updated_at
		FROM tasks
		WHERE id = $1
	`

	row := s.db.QueryRowContext(ctx, query, taskID)
	task, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return task, nil
}

// ListTasks lists an organization's tasks ordered for board rendering.
func (s *Store) ListTasks(ctx context.Context, orgID string, filter ListFilter) ([]Task, error) {
	query := `
		SELECT id, organization_id, title, description, status, priority, category, tags, position, assignee_id, created_by, due_date, completed_at, created_at, updated_at
		FROM tasks
		WHERE organization_id = $1
	`
	args := []interface{}{orgID}

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.AssigneeID != "" {
		args = append(args, filter.AssigneeID)
		query += fmt.Sprintf(" AND assignee_id = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	query += " ORDER BY status ASC, position ASC, created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		out = append(out, *task)
	}
	return out, rows.Err()
}

// UpdateTask persists the full current state of a task.
func (s *Store) UpdateTask(ctx context.Context, task *Task) error {
	tagsJSON, err := marshalTags(task.Tags)
	if err != nil {
		return err
	}

	task.UpdatedAt = time.Now().UTC()
	query := `
		UPDATE tasks
		SET title = $1, description = $2, status = $3, priority = $4, category = $5, tags = $6, position = $7, assignee_id = $8, due_date = $9, completed_at = $10, updated_at = $11
		WHERE id = $12
	`
	_, err = s.db.ExecContext(ctx, query,
		task.Title,
		task.Description,
		string(task.Status),
		string(task.Priority),
		task.Category,
		tagsJSON,
		task.Position,
		nullIfEmpty(task.AssigneeID),
		task.DueDate,
		task.CompletedAt,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task.
func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, taskID); err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// NextPosition returns one past the highest position in a status column.
func (s *Store) NextPosition(ctx context.Context, orgID string, status Status) (int, error) {
	query := `
		SELECT COALESCE(MAX(position), -1) + 1
		FROM tasks
		WHERE organization_id = $1 AND status = $2
	`
	var pos int
	if err := s.db.QueryRowContext(ctx, query, orgID, string(status)).Scan(&pos); err != nil {
		return 0, fmt.Errorf("failed to compute next position: %w", err)
	}
	return pos, nil
}

func scanTask(scan func(dest ...interface{}) error) (*Task, error) {
	var task Task
	var status, priority string
	var tags, assignee sql.NullString
	var dueDate, completedAt sql.NullTime

	err := scan(
		&task.ID,
		&task.OrganizationID,
		&task.Title,
		&task.Description,
		&status,
		&priority,
		&task.Category,
		&tags,
		&task.Position,
		&assignee,
		&task.CreatedBy,
		&dueDate,
		&completedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	task.Status = Status(status)
	task.Priority = Priority(priority)
	if assignee.Valid {
		task.AssigneeID = assignee.String
	}
	if dueDate.Valid {
		t := dueDate.Time
		task.DueDate = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		task.CompletedAt = &t
	}
	if tags.Valid && tags.String != "" {
		if err := json.Unmarshal([]byte(tags.String), &task.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &task, nil
}

func marshalTags(tags []string) (interface{}, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return string(b), nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
