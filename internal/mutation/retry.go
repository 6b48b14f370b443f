package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/mmynk/splitledger/internal/storage"
)

// ErrRetriesExhausted is returned when every attempt failed with a
// retryable error. The last error is wrapped alongside it.
var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy bounds WithRetry.
type RetryPolicy struct {
	// MaxAttempts counts the first try. Values below 1 mean 1.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt; it doubles per
	// attempt up to MaxDelay. Zero disables waiting.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Jitter randomizes each delay by up to this fraction (0 to 1).
	Jitter float64

	// OnRetry, if set, is called before every retry with the number of the
	// attempt that just failed.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy returns 3 attempts with 50ms doubling backoff capped at
// one second and 25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   50 * time.Millisecond,
		MaxDelay:    time.Second,
		Jitter:      0.25,
	}
}

// IsRetryable reports whether err is transient storage contention. Logical
// conflicts are never retryable: retrying them would overwrite an edit the
// caller has not seen.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrConcurrentUpdate) || errors.Is(err, storage.ErrVersionMismatch) {
		return false
	}
	return errors.Is(err, storage.ErrContention)
}

func (p RetryPolicy) build(onRetry func(failsafe.ExecutionEvent[any])) retrypolicy.RetryPolicy[any] {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	builder := retrypolicy.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return IsRetryable(err) }).
		WithMaxRetries(attempts - 1).
		ReturnLastFailure()

	if p.BaseDelay > 0 {
		maxDelay := p.MaxDelay
		if maxDelay <= p.BaseDelay {
			maxDelay = p.BaseDelay * 2
		}
		builder = builder.WithBackoff(p.BaseDelay, maxDelay)
		if p.Jitter > 0 && p.Jitter < 1 {
			builder = builder.WithJitterFactor(p.Jitter)
		}
	}

	if onRetry != nil {
		builder = builder.OnRetry(onRetry)
	}
	return builder.Build()
}

// WithRetry runs op until it succeeds, fails with a non-retryable error, or
// the policy's attempts are used up. Waits between attempts stop early if
// ctx is done.
func WithRetry(ctx context.Context, policy RetryPolicy, op func(ctx context.Context) error) error {
	attempts := 0
	var onRetry func(failsafe.ExecutionEvent[any])
	if policy.OnRetry != nil {
		onRetry = func(e failsafe.ExecutionEvent[any]) { policy.OnRetry(attempts, e.LastError()) }
	}

	err := failsafe.With[any](policy.build(onRetry)).WithContext(ctx).Run(func() error {
		attempts++
		err := op(ctx)
		if err != nil && IsRetryable(err) {
			slog.Debug("Retryable storage error", "attempt", attempts, "error", err)
		}
		return err
	})
	if err != nil && IsRetryable(err) {
		return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
	}
	return err
}
