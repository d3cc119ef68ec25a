package llm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrRateLimited classifies errors caused by the backend throttling requests.
// Errors that match it with errors.Is are retried by RetryingClient.
var ErrRateLimited = errors.New("rate limited")

// RateLimitError is returned by providers when the backend throttles a request.
type RateLimitError struct {
	Provider string
	Message  string
	Err      error
}

// Error implements the error interface.
func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s rate limited: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s rate limited: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// CLIError represents an error from a CLI provider.
type CLIError struct {
	// Provider is the name of the provider that encountered the error.
	Provider string

	// Message is a human-readable error message.
	Message string

	// Err is the underlying error (if any).
	Err error
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s provider error: %s: %v", e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("%s provider error: %s", e.Provider, e.Message)
}

// Unwrap returns the underlying error.
func (e *CLIError) Unwrap() error {
	return e.Err
}

// IsRateLimit reports whether err belongs to the rate-limit class.
func IsRateLimit(err error) bool {
	return err != nil && errors.Is(err, ErrRateLimited)
}

var rateLimitSignals = []string{
	"rate limit",
	"rate_limit",
	"ratelimit",
	"too many requests",
	"429",
	"resource_exhausted",
	"quota exceeded",
	"overloaded",
}

// looksRateLimited checks free-form backend output for throttling signals.
func looksRateLimited(msg string) bool {
	msg = strings.ToLower(msg)
	for _, signal := range rateLimitSignals {
		if strings.Contains(msg, signal) {
			return true
		}
	}
	return false
}
