package llm

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// ErrorType categorizes provider failures.
type ErrorType string

const (
	ErrorTypeAuth      ErrorType = "auth"
	ErrorTypeRateLimit ErrorType = "rate_limit"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeTimeout   ErrorType = "timeout"
	ErrorTypeRequest   ErrorType = "request"
	ErrorTypeUnknown   ErrorType = "unknown"
)

// Error is a classified provider error.
type Error struct {
	Type       ErrorType
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("llm %s error (HTTP %d): %v", e.Type, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("llm %s error: %v", e.Type, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ClassifyError converts go-openai and transport errors into an *Error.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	lower := strings.ToLower(err.Error())
	switch {
	case status == 401 || status == 403:
		return &Error{Type: ErrorTypeAuth, StatusCode: status, Cause: err}
	case status == 429:
		return &Error{Type: ErrorTypeRateLimit, StatusCode: status, Retryable: true, Cause: err}
	case status >= 500:
		return &Error{Type: ErrorTypeServer, StatusCode: status, Retryable: true, Cause: err}
	case status >= 400:
		return &Error{Type: ErrorTypeRequest, StatusCode: status, Cause: err}
	case strings.Contains(lower, "deadline exceeded") || strings.Contains(lower, "timeout"):
		return &Error{Type: ErrorTypeTimeout, Retryable: true, Cause: err}
	default:
		return &Error{Type: ErrorTypeUnknown, Cause: err}
	}
}
