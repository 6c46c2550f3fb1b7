package errors

import (
	stdErrors "errors"
	"fmt"
)

// SourceBlockedError represents an upstream source refusing access (HTTP 401/403).
type SourceBlockedError struct {
	Source     string
	Message    string
	StatusCode int
	// WithCookie is true when the rejected request already carried a session cookie
	WithCookie bool
}

func (e *SourceBlockedError) Error() string {
	return fmt.Sprintf("%s: %s (HTTP %d)", e.Source, e.Message, e.StatusCode)
}

// NewSourceBlockedError creates a new access error for the named source
func NewSourceBlockedError(source string, statusCode int, withCookie bool) *SourceBlockedError {
	var message string

	switch statusCode {
	case 401:
		message = "authentication required"
	case 403:
		if withCookie {
			message = "access forbidden even with session cookie"
		} else {
			message = "access forbidden"
		}
	default:
		message = "access denied"
	}

	return &SourceBlockedError{
		Source:     source,
		Message:    message,
		StatusCode: statusCode,
		WithCookie: withCookie,
	}
}

// IsSourceBlockedError checks if error is a SourceBlockedError
func IsSourceBlockedError(err error) bool {
	var blockedErr *SourceBlockedError
	return stdErrors.As(err, &blockedErr)
}
