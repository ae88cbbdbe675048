package redmine

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	// ErrNotFound is returned when the tracker has no issue with the
	// requested ID.
	ErrNotFound = errors.New("issue not found")
	// ErrUnauthorized is returned when the API key is rejected.
	ErrUnauthorized = errors.New("unauthorized")
)

// NetworkError is a transport-level failure (connection refused, timeout,
// malformed response). Network errors are retryable.
type NetworkError struct {
	Op  string // operation, e.g. "fetching issue 42"
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError is a rejection from the tracker itself: validation failures,
// permission errors, unknown resources. Remote errors are not retryable.
type RemoteError struct {
	Op         string
	StatusCode int
	Messages   []string // validation messages from the tracker, if any
	Err        error    // sentinel such as ErrNotFound, may be nil
}

func (e *RemoteError) Error() string {
	if len(e.Messages) > 0 {
		return fmt.Sprintf("%s: tracker returned %d: %s", e.Op, e.StatusCode, e.Messages[0])
	}
	return fmt.Sprintf("%s: tracker returned %d", e.Op, e.StatusCode)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the error is worth retrying: transport
// failures are, rejections by the tracker are not.
func Retryable(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// UserMessage renders an error for display. It strips wrapping that only
// matters in logs and keeps the tracker's own validation text when present.
func UserMessage(err error) string {
	var re *RemoteError
	if errors.As(err, &re) && len(re.Messages) > 0 {
		return re.Messages[0]
	}
	if errors.Is(err, ErrNotFound) {
		return "issue not found"
	}
	if errors.Is(err, ErrUnauthorized) {
		return "the tracker rejected the API key"
	}
	return err.Error()
}
