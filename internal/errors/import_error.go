package errors

import (
	stdErrors "errors"
	"net/http"
)

// ImportError is an error that is reported back to the caller of an import,
// carrying the HTTP status and a corrective message.
type ImportError struct {
	Status  int
	Message string
	Err     error
}

func (e *ImportError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *ImportError) Unwrap() error {
	return e.Err
}

// NewValidationError creates a 400 error for bad input such as malformed or
// unsupported URLs
func NewValidationError(message string) *ImportError {
	return &ImportError{Status: http.StatusBadRequest, Message: message}
}

// NewExhaustedError creates the error returned when no source produced a usable title
func NewExhaustedError(message string, cause error) *ImportError {
	return &ImportError{Status: http.StatusBadRequest, Message: message, Err: cause}
}

// IsImportError checks if error is an ImportError
func IsImportError(err error) bool {
	_, ok := AsImportError(err)
	return ok
}

// AsImportError extracts the ImportError from an error chain
func AsImportError(err error) (*ImportError, bool) {
	var importErr *ImportError
	if stdErrors.As(err, &importErr) {
		return importErr, true
	}
	return nil, false
}
