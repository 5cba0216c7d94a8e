package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches any *ResponseError with status 401
var ErrUnauthorized = errors.New("unauthorized")

// ResponseError is returned by Client for non-2xx responses
type ResponseError struct {
	Method     string
	Path       string
	StatusCode int
	Body       []byte

	// Redirected is set when the failure sent the router to the login route
	Redirected bool
}

func (e *ResponseError) Error() string {
	msg := e.Message()
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s %s failed (status %d): %s", e.Method, e.Path, e.StatusCode, msg)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses
func (e *ResponseError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// Message extracts the backend's "message" or "error" field, falling back to
// the raw body.
func (e *ResponseError) Message() string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return strings.TrimSpace(string(e.Body))
}
