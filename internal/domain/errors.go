package domain

import (
	"errors"
	"fmt"
)

// UpstreamReason is a machine-checkable failure kind set by the upstream
// client. Recovery logic switches on the reason, never on message text.
type UpstreamReason string

const (
	ReasonAuth        UpstreamReason = "auth"
	ReasonNetwork     UpstreamReason = "network"
	ReasonBadResponse UpstreamReason = "bad_response"
)

// UpstreamError reports a failure against the external provider.
type UpstreamError struct {
	Reason UpstreamReason
	Op     string
	Err    error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s (%s): %v", e.Op, e.Reason, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsAuthExpired reports whether err is an upstream auth failure.
func IsAuthExpired(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Reason == ReasonAuth
}

// ValidationError reports a missing or malformed request identifier.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// FetchFailedError means a request could be served neither from upstream
// nor from the cache.
type FetchFailedError struct {
	Key string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("fetch %s failed: %v", e.Key, e.Err)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// ErrJobInFlight rejects job creation while the latest record for the
// symbol is still pending or processing.
var ErrJobInFlight = errors.New("an analysis job is already in flight for this symbol")
