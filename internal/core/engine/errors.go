package engine

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an engine that cannot be constructed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// NetworkError wraps a transport failure (connection refused, timeout).
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RateLimitError reports an HTTP 429 or an API-reported rate limit. For the
// API-reported case Err holds the originating *APIError.
type RateLimitError struct {
	Status int
	Err    error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("rate limited: %v", e.Err)
	}
	return fmt.Sprintf("rate limited: status %d", e.Status)
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// HTTPError reports a non-2xx response other than 429.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: status %d: %s", e.Status, truncate(e.Body, 200))
}

// APIError carries GraphQL-level error messages.
type APIError struct {
	Messages []string
}

func (e *APIError) Error() string {
	return "graphql errors: " + strings.Join(e.Messages, "; ")
}

// DecodeError reports a 2xx response whose body could not be parsed.
type DecodeError struct {
	Err  error
	Body string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode response: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// RetriesExhaustedError is returned once the retry budget is spent.
// It unwraps to the error of the final attempt.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() error { return e.Err }

func truncate(value string, n int) string {
	if len(value) <= n {
		return value
	}
	return value[:n] + "..."
}
