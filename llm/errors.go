package llm

import (
	"errors"
	"fmt"
	"time"
)

// Error is the shared provider error taxonomy. Concrete kinds (RateLimitError,
// AuthenticationError, ContextLengthError, ContentFilterError,
// InvalidRequestError, ProviderUnavailableError, LLMTimeoutError) all embed
// Error and set Retryable per §4.8's wire-condition table; an adapter that
// meets a condition not in that table falls back to a plain Error with
// Retryable: true ("any other exception").
//
// Grounded on the teacher's pkg/httpclient.RetryableError (Unwrap/cause
// preservation) generalized into the spec's named error families, since the
// teacher has no equivalent taxonomy of its own (it surfaces raw fmt.Errorf
// strings from pkg/llms/anthropic.go).
type Error struct {
	Provider  string
	Kind      string
	Message   string
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// IsRetryable reports whether this error's family is retryable per §4.8's
// wire-condition table.
func (e *Error) IsRetryable() bool { return e.Retryable }

// RateLimitError is HTTP 429: the provider asked the caller to slow down.
type RateLimitError struct {
	*Error
	StatusCode int
	RetryAfter time.Duration // zero if the provider sent none
}

func NewRateLimitError(provider string, statusCode int, retryAfter time.Duration, cause error) *RateLimitError {
	return &RateLimitError{
		Error: &Error{
			Provider:  provider,
			Kind:      "rate_limit",
			Message:   fmt.Sprintf("rate limited (status %d)", statusCode),
			Retryable: true,
			Cause:     cause,
		},
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}
}

// AuthenticationError is HTTP 401/403: credentials are missing or rejected.
type AuthenticationError struct{ *Error }

func NewAuthenticationError(provider, message string, cause error) *AuthenticationError {
	return &AuthenticationError{&Error{
		Provider: provider, Kind: "authentication", Message: message, Retryable: false, Cause: cause,
	}}
}

// ContextLengthError is HTTP 400 whose message indicates the prompt exceeded
// the model's context window.
type ContextLengthError struct{ *Error }

func NewContextLengthError(provider, message string, cause error) *ContextLengthError {
	return &ContextLengthError{&Error{
		Provider: provider, Kind: "context_length", Message: message, Retryable: false, Cause: cause,
	}}
}

// ContentFilterError is HTTP 400 whose message indicates a safety/content
// filter rejected the request.
type ContentFilterError struct{ *Error }

func NewContentFilterError(provider, message string, cause error) *ContentFilterError {
	return &ContentFilterError{&Error{
		Provider: provider, Kind: "content_filter", Message: message, Retryable: false, Cause: cause,
	}}
}

// InvalidRequestError is any other HTTP 400.
type InvalidRequestError struct{ *Error }

func NewInvalidRequestError(provider, message string, cause error) *InvalidRequestError {
	return &InvalidRequestError{&Error{
		Provider: provider, Kind: "invalid_request", Message: message, Retryable: false, Cause: cause,
	}}
}

// ProviderUnavailableError is HTTP 5xx or a transport-level "service
// unavailable" condition.
type ProviderUnavailableError struct{ *Error }

func NewProviderUnavailableError(provider, message string, cause error) *ProviderUnavailableError {
	return &ProviderUnavailableError{&Error{
		Provider: provider, Kind: "provider_unavailable", Message: message, Retryable: true, Cause: cause,
	}}
}

// LLMTimeoutError is a client- or server-side timeout.
type LLMTimeoutError struct{ *Error }

func NewLLMTimeoutError(provider, message string, cause error) *LLMTimeoutError {
	return &LLMTimeoutError{&Error{
		Provider: provider, Kind: "timeout", Message: message, Retryable: true, Cause: cause,
	}}
}

// NewError builds the catch-all "any other exception" kind: retryable by
// default per §4.8's translation table.
func NewError(provider, message string, cause error) *Error {
	return &Error{Provider: provider, Kind: "unknown", Message: message, Retryable: true, Cause: cause}
}

// retryabler is satisfied by *Error and, via promotion, by every concrete
// error family that embeds it (*RateLimitError, *ProviderUnavailableError,
// …).
type retryabler interface {
	IsRetryable() bool
}

// IsRetryable reports whether err (or a cause in its Unwrap chain) is one of
// the shared error families and marked retryable.
func IsRetryable(err error) bool {
	var r retryabler
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}
