// Package degradation tags the result of a best-effort step: either the
// primary value or a fallback together with the reason the primary path was
// abandoned.
package degradation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/houzhh15/wxscribe/pkg/logger"
	"github.com/houzhh15/wxscribe/pkg/metrics"
)

// Outcome is the value of a best-effort step. Reason is nil on success.
type Outcome[T any] struct {
	Value  T
	Reason error
}

// Success wraps a value produced by the primary path.
func Success[T any](v T) Outcome[T] {
	return Outcome[T]{Value: v}
}

// Degraded wraps a fallback value. A nil reason is replaced so that the
// outcome still reports as degraded.
func Degraded[T any](v T, reason error) Outcome[T] {
	if reason == nil {
		reason = errors.New("degraded without reason")
	}
	return Outcome[T]{Value: v, Reason: reason}
}

// IsDegraded reports whether the fallback was used.
func (o Outcome[T]) IsDegraded() bool {
	return o.Reason != nil
}

// Attempt runs primary and falls back to fallback when it fails. The degrade
// is logged at WARN and counted as a degraded phase outcome. Cancellation is
// not a degrade: it is returned as the error so the run can stop.
func Attempt[T any](ctx context.Context, log *slog.Logger, phase string, primary func() (T, error), fallback T) (Outcome[T], error) {
	start := time.Now()
	v, err := primary()
	elapsed := time.Since(start)

	if err == nil {
		metrics.RecordPhase(phase, metrics.OutcomeSuccess, elapsed.Seconds())
		logger.LogPhase(log, phase, logger.ActionCompleted, elapsed.Milliseconds(), "")
		return Success(v), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		metrics.RecordPhase(phase, metrics.OutcomeFailed, elapsed.Seconds())
		return Outcome[T]{}, ctxErr
	}

	metrics.RecordPhase(phase, metrics.OutcomeDegraded, elapsed.Seconds())
	logger.LogPhase(log, phase, logger.ActionDegraded, elapsed.Milliseconds(), "FALLBACK_USED")
	log.Warn("Using fallback result", "phase", phase, "reason", err)
	return Degraded(fallback, err), nil
}
