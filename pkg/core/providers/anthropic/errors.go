package anthropic

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Error represents an API error from Anthropic.
type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("anthropic: %s: %s", e.Type, e.Message)
}

// IsRetryable returns true if the error is retryable.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case "rate_limit_error", "overloaded_error", "api_error":
		return true
	default:
		return false
	}
}

// anthropicError is the error response wire format.
type anthropicError struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// parseError parses an error response from Anthropic.
func parseError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)

	var anthErr anthropicError
	if err := json.Unmarshal(body, &anthErr); err != nil || anthErr.Error.Type == "" {
		return &Error{
			Type:    "provider_error",
			Message: string(body),
			Status:  resp.StatusCode,
		}
	}
	return &Error{
		Type:    anthErr.Error.Type,
		Message: anthErr.Error.Message,
		Status:  resp.StatusCode,
	}
}
