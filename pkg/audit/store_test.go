package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogWritesEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	logger := NewDBLogger(db, nil)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(
			sqlmock.AnyArg(), // generated id
			"user-1",
			"org-1",
			string(ActionTaskCreate),
			string(ResourceTask),
			"task-1",
			`{"title":"hello"}`,
			sqlmock.AnyArg(), // timestamp
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	entry := &Entry{
		UserID:         "user-1",
		OrganizationID: "org-1",
		Action:         ActionTaskCreate,
		Resource:       ResourceTask,
		ResourceID:     "task-1",
		Details:        map[string]interface{}{"title": "hello"},
	}
	require.NoError(t, logger.Log(context.Background(), entry))

	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.Timestamp.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLogNilDetails(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(
			sqlmock.AnyArg(),
			"user-1",
			"",
			string(ActionLogin),
			string(ResourceUser),
			"user-1",
			nil,
			sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewDBLogger(db, nil).Log(context.Background(), &Entry{
		UserID:     "user-1",
		Action:     ActionLogin,
		Resource:   ResourceUser,
		ResourceID: "user-1",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListScansEntries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "user_id", "organization_id", "action", "resource", "resource_id", "details", "created_at",
	}).
		AddRow("e1", "u1", "org-1", string(ActionTaskUpdate), string(ResourceTask), "t1", `{"fields":["title"]}`, now).
		AddRow("e2", "u2", "org-1", string(ActionTaskDelete), string(ResourceTask), "t2", "not json", now)

	mock.ExpectQuery("SELECT (.+) FROM audit_logs").
		WithArgs("org-1", 100).
		WillReturnRows(rows)

	entries, err := NewDBLogger(db, nil).List(context.Background(), ListFilter{OrganizationID: "org-1"})
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, ActionTaskUpdate, entries[0].Action)
	assert.Equal(t, []interface{}{"title"}, entries[0].Details["fields"])

	// A corrupt details blob does not hide the entry.
	assert.Equal(t, "not json", entries[1].Details["_raw"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAppliesFilters(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT (.+) FROM audit_logs").
		WithArgs("org-1", "u1", string(ActionLogin), 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "organization_id", "action", "resource", "resource_id", "details", "created_at",
		}))

	_, err = NewDBLogger(db, nil).List(context.Background(), ListFilter{
		OrganizationID: "org-1",
		UserID:         "u1",
		Action:         ActionLogin,
		Limit:          10,
		Offset:         20,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPurgeReportsCount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	cutoff := time.Now().UTC().Add(-90 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM audit_logs").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	n, err := NewDBLogger(db, nil).Purge(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type failingLogger struct{}

func (failingLogger) Log(ctx context.Context, entry *Entry) error {
	return errors.New("db down")
}

func TestRecordIsBestEffort(t *testing.T) {
	// Record must swallow write failures and tolerate a nil logger; audit
	// loss never fails the calling operation.
	Record(context.Background(), failingLogger{}, "u1", "org-1", ActionTaskCreate, ResourceTask, "t1", nil)
	Record(context.Background(), nil, "u1", "org-1", ActionTaskCreate, ResourceTask, "t1", nil)
	Record(context.Background(), NopLogger{}, "u1", "org-1", ActionTaskCreate, ResourceTask, "t1", nil)
}
