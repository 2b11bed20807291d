// Package source implements the per-platform content clients.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ppiankov/socialspy/internal/record"
)

// Client fetches raw content items from one platform.
type Client interface {
	// Platform returns the platform this client serves.
	Platform() record.Platform

	// Fetch returns the raw items for target. It never returns an error:
	// failures are reported in the outcome so one platform cannot abort a run.
	Fetch(ctx context.Context, target record.Target, window record.TimeWindow) FetchOutcome
}

// ErrorKind classifies why a fetch failed.
type ErrorKind string

const (
	ErrorNone      ErrorKind = ""
	ErrorAuth      ErrorKind = "auth"
	ErrorTransient ErrorKind = "transient"
	ErrorTimeout   ErrorKind = "timeout"
	ErrorOther     ErrorKind = "other"
)

// FetchOutcome is the result of one Fetch call.
type FetchOutcome struct {
	Platform    record.Platform
	Target      record.Target
	Items       []json.RawMessage // raw items in platform order
	Pages       int
	Succeeded   bool
	ErrorKind   ErrorKind
	ErrorDetail string // set iff Succeeded is false
}

func succeeded(p record.Platform, target record.Target, items []json.RawMessage, pages int) FetchOutcome {
	return FetchOutcome{
		Platform:  p,
		Target:    target,
		Items:     items,
		Pages:     pages,
		Succeeded: true,
	}
}

// failed builds a failed outcome. Items fetched before the failure are
// dropped: a partially paginated target is reported as failed.
func failed(p record.Platform, target record.Target, pages int, err error) FetchOutcome {
	return FetchOutcome{
		Platform:    p,
		Target:      target,
		Pages:       pages,
		ErrorKind:   Classify(err),
		ErrorDetail: err.Error(),
	}
}

// TransientSourceError is a retryable failure: rate limiting, 5xx, or a
// network error.
type TransientSourceError struct {
	Platform   record.Platform
	StatusCode int
	Reason     string
	Err        error
}

func (e *TransientSourceError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Reason != "":
		return fmt.Sprintf("%s: transient error (status %d, %s)", e.Platform, e.StatusCode, e.Reason)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: transient error (status %d)", e.Platform, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: transient error: %v", e.Platform, e.Err)
	}
	return fmt.Sprintf("%s: transient error", e.Platform)
}

func (e *TransientSourceError) Unwrap() error { return e.Err }

// AuthSourceError is a non-retryable credential or quota failure.
type AuthSourceError struct {
	Platform   record.Platform
	StatusCode int
	Reason     string
}

func (e *AuthSourceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d): check your API key", e.Platform, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s: check your API key", e.Platform, e.Reason)
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientSourceError
	return errors.As(err, &t)
}

// Classify maps an error to the kind reported in run status.
func Classify(err error) ErrorKind {
	if err == nil {
		return ErrorNone
	}
	var auth *AuthSourceError
	if errors.As(err, &auth) {
		return ErrorAuth
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTimeout
	}
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorOther
}

func missingKey(p record.Platform) error {
	return &AuthSourceError{Platform: p, Reason: "missing API key"}
}
