package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrorDetail is a single field-level problem reported by the backend.
type ErrorDetail struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message,omitempty"`
}

// Error is an HTTP error response from the backend. Any failure that is not
// an *Error is a transport-level (network) failure.
type Error struct {
	Status  int           `json:"status"`
	Code    string        `json:"code,omitempty"`
	Message string        `json:"message"`
	Details []ErrorDetail `json:"details,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("api %d: %s", e.Status, e.Message)
}

// parseError builds an *Error from a non-2xx response body. The backend
// sends {message, code, details}; anything else degrades to the raw text.
func parseError(status int, body []byte) *Error {
	apiErr := &Error{Status: status, Message: "request failed"}
	var parsed struct {
		Message string        `json:"message"`
		Code    string        `json:"code"`
		Details []ErrorDetail `json:"details"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Message != "" {
		apiErr.Message = parsed.Message
		apiErr.Code = parsed.Code
		apiErr.Details = parsed.Details
		return apiErr
	}
	if txt := strings.TrimSpace(string(body)); txt != "" {
		apiErr.Message = txt
	}
	return apiErr
}

// AsError unwraps an *Error if err carries one.
func AsError(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// IsNetworkError reports whether err is a transport-level failure (the
// request never produced an HTTP response: DNS, connect, timeout).
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}
	_, isAPI := AsError(err)
	return !isAPI
}

// IsServerUnavailable reports whether the response status signals that this
// server instance is down behind a proxy and failover should be attempted.
func IsServerUnavailable(err error) bool {
	apiErr, ok := AsError(err)
	if !ok {
		return false
	}
	switch apiErr.Status {
	case 502, 503, 504:
		return true
	}
	return false
}

// IsNonRetryable reports whether the response is a business-rule rejection
// that will not resolve by replaying the same body. These are terminal:
// the queued item moves to the conflict ledger.
func IsNonRetryable(err error) bool {
	apiErr, ok := AsError(err)
	if !ok {
		return false
	}
	switch apiErr.Status {
	case 400, 403, 404, 409, 422:
		return true
	}
	return false
}

// IsUnauthorized reports a 401 after the refresh-and-retry cycle failed.
func IsUnauthorized(err error) bool {
	apiErr, ok := AsError(err)
	return ok && apiErr.Status == 401
}
