package monitor

import (
	"errors"
	"fmt"
)

// ErrMonitorNotFound is returned by registry lookups for unknown IDs.
var ErrMonitorNotFound = errors.New("monitor not found")

// ValidationError rejects a monitor request before any tick runs. It is
// surfaced synchronously to the caller; no monitor is registered.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func validationErrorf(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}
