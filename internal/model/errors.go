package model

import (
	"errors"
	"fmt"
)

// ErrNotConfigured is returned for any catalog call made without a credential
var ErrNotConfigured = errors.New("catalog API key not configured")

// FailureReason classifies a failed catalog fetch
type FailureReason int

const (
	NetworkFailure FailureReason = iota + 1
	UpstreamError
)

func (r FailureReason) String() string {
	switch r {
	case NetworkFailure:
		return "network_failure"
	case UpstreamError:
		return "upstream_error"
	default:
		return "unknown"
	}
}

// FetchError is the single error value surfaced by the catalog client
type FetchError struct {
	Reason FailureReason
	Status int // only set for UpstreamError
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Reason {
	case UpstreamError:
		if e.Err != nil {
			return fmt.Sprintf("catalog returned status %d: %v", e.Status, e.Err)
		}
		return fmt.Sprintf("catalog returned status %d", e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("catalog request failed: %v", e.Err)
		}
		return "catalog request failed"
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// AsFetchError extracts a *FetchError from err
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
