package sourceresolve

import (
	"errors"
	"fmt"
)

// The handler-level error model from §4.1: NotFound, NetworkError
// (retryable), InvalidArchive, PermissionDenied. The Resolver wraps these
// into BundleNotFoundError / BundleLoadError before returning to callers.

type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("not found: %s", e.Path) }

type NetworkError struct {
	URL   string
	Cause error
}

func (e *NetworkError) Error() string  { return fmt.Sprintf("network error fetching %s: %v", e.URL, e.Cause) }
func (e *NetworkError) Unwrap() error  { return e.Cause }
func (e *NetworkError) IsRetryable() bool { return true }

type InvalidArchiveError struct {
	Path  string
	Cause error
}

func (e *InvalidArchiveError) Error() string {
	return fmt.Sprintf("invalid archive %s: %v", e.Path, e.Cause)
}
func (e *InvalidArchiveError) Unwrap() error { return e.Cause }

type PermissionDeniedError struct {
	Path  string
	Cause error
}

func (e *PermissionDeniedError) Error() string {
	return fmt.Sprintf("permission denied: %s: %v", e.Path, e.Cause)
}
func (e *PermissionDeniedError) Unwrap() error { return e.Cause }

// BundleNotFoundError wraps a handler's NotFoundError with the original
// source URI the resolver was asked to fetch.
type BundleNotFoundError struct {
	URI   string
	Cause error
}

func (e *BundleNotFoundError) Error() string { return fmt.Sprintf("bundle not found: %s: %v", e.URI, e.Cause) }
func (e *BundleNotFoundError) Unwrap() error { return e.Cause }

// BundleLoadError wraps any other handler failure (network, invalid
// archive, permission denied, no matching handler).
type BundleLoadError struct {
	URI   string
	Cause error
}

func (e *BundleLoadError) Error() string { return fmt.Sprintf("failed to load bundle %s: %v", e.URI, e.Cause) }
func (e *BundleLoadError) Unwrap() error { return e.Cause }

// wrapResolveError translates a handler error into the resolver-facing
// taxonomy per §4.1's "Resolver wraps these as BundleNotFoundError /
// BundleLoadError".
func wrapResolveError(uri string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		return &BundleNotFoundError{URI: uri, Cause: err}
	}
	return &BundleLoadError{URI: uri, Cause: err}
}
