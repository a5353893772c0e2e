// Package ai holds the provider-neutral contract for language-model calls.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Generator performs a single language-model call. Retries belong to the caller.
type Generator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
	Model() string
}

// ErrTransient marks provider failures worth retrying: transport errors and
// server-side faults.
var ErrTransient = errors.New("transient model error")

// RateLimitError is returned when the provider asks the caller to slow down.
type RateLimitError struct {
	// RetryAfter is the delay suggested by the provider, zero when unknown.
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// Transient wraps err so that errors.Is(err, ErrTransient) holds.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
