package errs

import (
	"fmt"
	"time"
)

// APIError is the structured error shape returned by the todo backend for
// non-2xx responses. The gateway synthesizes one from the HTTP status line
// when the response body is not parseable JSON.
type APIError struct {
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
	Path       string    `json:"path"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d on %s: %s", e.StatusCode, e.Path, e.Message)
}

// Is maps 401 responses onto ErrUnauthorized so callers can match with errors.Is.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == 401
}
