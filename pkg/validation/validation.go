// Package validation carries input validation failures from services to
// the transport layer, which maps them to 400 responses instead of the
// 500 a plain error would get.
package validation

import (
	"errors"
	"fmt"
)

// Error is a user-correctable input problem.
type Error struct {
	Message string
}

func (e *Error) Error() string { return e.Message }

// New creates a validation error.
func New(message string) error {
	return &Error{Message: message}
}

// Newf creates a formatted validation error.
func Newf(format string, args ...interface{}) error {
	return &Error{Message: fmt.Sprintf(format, args...)}
}

// AsError extracts a validation error from anywhere in err's chain.
func AsError(err error) (*Error, bool) {
	var v *Error
	ok := errors.As(err, &v)
	return v, ok
}
