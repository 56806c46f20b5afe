package kalshi

import (
	"errors"
	"fmt"
	"net/http"
)

// Class buckets every transport result so the retry loop can act on it.
// Values double as metrics label values.
type Class string

const (
	ClassSuccess   Class = "success"
	ClassAuth      Class = "auth"
	ClassRetryable Class = "retryable"
	ClassFatal     Class = "fatal"
)

func classifyStatus(status int) Class {
	switch {
	case status >= 200 && status < 300:
		return ClassSuccess
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status >= 500:
		return ClassRetryable
	default:
		return ClassFatal
	}
}

var (
	// ErrRetriesExhausted wraps the last retryable failure once the
	// attempt budget is spent.
	ErrRetriesExhausted = errors.New("kalshi: retries exhausted")
	// ErrAuthDeclined means the venue rejected our credentials and one
	// reactive session refresh did not help.
	ErrAuthDeclined = errors.New("kalshi: authentication declined")
)

// APIError is a non-success venue response.
type APIError struct {
	Status int
	Class  Class
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("venue returned %d (%s): %s", e.Status, e.Class, snippet(e.Body))
}

// snippet keeps error strings readable when the venue returns a large body.
func snippet(s string) string {
	const max = 200
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
