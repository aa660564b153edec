package audit

import (
	"context"
	"time"
)

// Logger records audit entries. Recording is best effort at call sites:
// mutations commit first and a failed audit write never rolls them back.
type Logger interface {
	Log(ctx context.Context, entry *Entry) error
}

// Record is the convenience wrapper used after every mutation. Errors
// are swallowed; the storage layer logs them on its own.
func Record(ctx context.Context, logger Logger, userID, organizationID string, action Action, resource Resource, resourceID string, details map[string]interface{}) {
	if logger == nil {
		return
	}
	_ = logger.Log(ctx, &Entry{
		UserID:         userID,
		OrganizationID: organizationID,
		Action:         action,
		Resource:       resource,
		ResourceID:     resourceID,
		Details:        details,
		Timestamp:      time.Now().UTC(),
	})
}

// NopLogger discards everything. Used in tests and when auditing is
// disabled.
type NopLogger struct{}

func (NopLogger) Log(ctx context.Context, entry *Entry) error { return nil }
