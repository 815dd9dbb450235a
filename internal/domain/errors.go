package domain

import (
	"errors"
	"fmt"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRejected    = errors.New("provider rejected request")
	ErrRouteNotFound       = errors.New("route not found")
	ErrVehicleNotFound     = errors.New("vehicle not found")
)

// ValidationError marks a malformed or contradictory route request.
// It is returned verbatim to the caller and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ResolutionFailure records why a single address could not be geocoded.
type ResolutionFailure struct {
	Address string
	Reason  string
	Cached  bool
}

func (f *ResolutionFailure) Error() string {
	return fmt.Sprintf("resolve %q: %s", f.Address, f.Reason)
}

// ProviderError wraps a remote optimizer failure.
// Kind is ErrProviderUnavailable or ErrProviderRejected.
type ProviderError struct {
	Provider string
	Kind     error
	Err      error
}

func Unavailable(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrProviderUnavailable, Err: err}
}

func Rejected(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrProviderRejected, Err: err}
}

func (e *ProviderError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Is(target error) bool { return target == e.Kind }

func (e *ProviderError) Unwrap() error { return e.Err }

// MetricError means an invalid coordinate reached the distance metric.
// Upstream validation should make it unreachable, so it is propagated, not absorbed.
type MetricError struct {
	Coordinate Coordinate
	Reason     string
}

func (e *MetricError) Error() string {
	return fmt.Sprintf("distance metric: invalid coordinate (%v, %v): %s", e.Coordinate.Lat, e.Coordinate.Lon, e.Reason)
}
