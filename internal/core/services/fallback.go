package services

import (
	"context"
	"errors"
	"time"

	"github.com/saga-labs/saga-core/internal/logger"
)

// ErrAllAttemptsFailed indicates every fallback attempt was exhausted.
var ErrAllAttemptsFailed = errors.New("all attempts failed")

// Attempt is one capability provider in an ordered fallback sequence.
type Attempt[T any] struct {
	// Name identifies the provider in logs and failure records.
	Name string

	// Run executes the attempt. The context carries the per-attempt
	// timeout; a timeout is treated identically to a failure.
	Run func(ctx context.Context) (T, error)
}

// AttemptFailure records one failed attempt.
type AttemptFailure struct {
	// Name is the provider that failed.
	Name string

	// Err is the failure or timeout.
	Err error
}

// RunFallback tries the attempts in order, stopping at the first success.
// Each attempt runs under its own timeout. Failures along the way are
// collected and returned even on success so the caller can report which
// path was taken. When every attempt fails, the error wraps
// ErrAllAttemptsFailed and the failures describe each attempted provider.
func RunFallback[T any](
	ctx context.Context, timeout time.Duration, attempts []Attempt[T],
) (T, string, []AttemptFailure, error) {
	var zero T
	var failures []AttemptFailure

	for _, attempt := range attempts {
		attemptCtx := ctx
		var cancel context.CancelFunc
		if timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
		}

		result, err := attempt.Run(attemptCtx)
		if cancel != nil {
			cancel()
		}

		if err == nil {
			logger.Debug("Fallback: %s succeeded after %d failed attempts", attempt.Name, len(failures))
			return result, attempt.Name, failures, nil
		}

		logger.Warn("Fallback: %s failed: %v", attempt.Name, err)
		failures = append(failures, AttemptFailure{Name: attempt.Name, Err: err})

		// A cancelled parent stops the whole sequence.
		if ctx.Err() != nil {
			break
		}
	}

	return zero, "", failures, ErrAllAttemptsFailed
}
