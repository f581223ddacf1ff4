package models

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrTransientIO marks retryable network, timeout or availability failures.
	ErrTransientIO = errors.New("transient i/o error")
	// ErrPermanentData marks missing or corrupt input that retries cannot fix.
	ErrPermanentData = errors.New("permanent data error")
	// ErrConflict is returned when a conditional transition finds another state.
	ErrConflict = errors.New("state conflict")
	// ErrReconciliationConflict marks more than one eligible label for an order.
	ErrReconciliationConflict = errors.New("reconciliation conflict")
	// ErrStaleTransition marks a transition that would break monotonicity.
	ErrStaleTransition = errors.New("stale transition")
	// ErrNotFound is returned for unknown orders, labels or matches.
	ErrNotFound = errors.New("not found")
)

// Transient wraps err as retryable unless it already carries a kind.
func Transient(err error) error {
	if err == nil || hasKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransientIO, err)
}

// Permanent wraps err as non-retryable unless it already carries a kind.
func Permanent(err error) error {
	if err == nil || hasKind(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPermanentData, err)
}

// IsTransient reports whether err should be retried. Deadlines count as
// transient; cancellation of the caller does not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrPermanentData) || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransientIO) || errors.Is(err, context.DeadlineExceeded)
}

func hasKind(err error) bool {
	for _, kind := range []error{ErrTransientIO, ErrPermanentData, ErrConflict, ErrReconciliationConflict, ErrStaleTransition, ErrNotFound} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// StatusCode maps an error to the HTTP status reported by the operator API.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict), errors.Is(err, ErrStaleTransition), errors.Is(err, ErrReconciliationConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
