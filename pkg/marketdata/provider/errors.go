package provider

import (
	"errors"
	"fmt"
)

// AuthError indicates the vendor rejected the API key, or no key was
// supplied at all. Fatal: the pager never retries it.
type AuthError struct {
	Provider string
	Status   int
	Reason   string
}

func (e *AuthError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s authentication failed (HTTP %d): %s", e.Provider, e.Status, e.Reason)
	}

	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// RateLimitError indicates the vendor returned HTTP 429 (or the in-band
// equivalent). Transient: the caller backs off and retries within its
// budget.
type RateLimitError struct {
	Provider string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limit exceeded", e.Provider)
}

// ProviderError indicates an unexpected status or a malformed response
// body. The raw status and body are kept for diagnosis.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s returned an unexpected response (HTTP %d): %v", e.Provider, e.Status, e.Err)
	}

	return fmt.Sprintf("%s returned HTTP %d: %s", e.Provider, e.Status, e.Body)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NetworkError indicates a transport-level failure before any response was
// received.
type NetworkError struct {
	Provider string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error is transient (rate limit or
// transport failure) and worth retrying within a bounded budget.
func IsRetryable(err error) bool {
	var rateLimitErr *RateLimitError
	var networkErr *NetworkError

	return errors.As(err, &rateLimitErr) || errors.As(err, &networkErr)
}
