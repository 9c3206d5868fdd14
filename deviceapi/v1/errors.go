package v1

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthError means the device API rejected the configured credentials, or
// rejected a freshly issued token.
type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.StatusCode == 0 {
		return "device api authentication failed: " + e.Message
	}
	return fmt.Sprintf("device api authentication failed (%d): %s", e.StatusCode, e.Message)
}

// RemoteError is a non-success response from a data endpoint, or a transport
// failure (StatusCode 0) such as a timeout.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s %s failed: %v", e.Method, e.Path, e.Err)
	}
	msg := fmt.Sprintf("%s %s failed with status code %d", e.Method, e.Path, e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Timeout reports whether the call hit the client-side deadline.
func (e *RemoteError) Timeout() bool {
	var te interface{ Timeout() bool }
	return e.Err != nil && errors.As(e.Err, &te) && te.Timeout()
}

func (e *RemoteError) ServerError() bool {
	return e.StatusCode >= http.StatusInternalServerError
}

// ConflictError is returned by employee creation when the code already exists
// remotely.
type ConflictError struct {
	Code string
	Body string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("employee code %s already exists on the device api: %s", e.Code, e.Body)
}

// MalformedError marks a single record that failed validation. Iteration over
// the remaining records continues.
type MalformedError struct {
	Kind string
	ID   string
	Err  error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed %s %q: %v", e.Kind, e.ID, e.Err)
}

func (e *MalformedError) Unwrap() error {
	return e.Err
}
