package progress

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrUnknownLesson is returned when completing a lesson that is not in
// the catalog.
var ErrUnknownLesson = errors.New("unknown lesson")

// StoreError wraps backend errors with store context
type StoreError struct {
	Backend   string // Backend name (e.g., "sqlite")
	Operation string // Operation that failed (e.g., "load", "connect")
	Err       error  // Underlying error
	Retryable bool   // Whether this error is retryable
}

func (e *StoreError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("progress store %q %s failed: %v", e.Backend, e.Operation, e.Err)
	}
	return fmt.Sprintf("progress store %q: %v", e.Backend, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError with retryable detection
func NewStoreError(backend, operation string, err error) *StoreError {
	return &StoreError{
		Backend:   backend,
		Operation: operation,
		Err:       err,
		Retryable: isRetryableError(err),
	}
}

// isRetryableError checks if an error is worth another attempt
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	errStr := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection refused",
		"connection reset",
		"database is locked",
		"too many clients",
		"timeout",
		"try again",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}
