// Package retry wraps one outbound fetch with bounded exponential backoff and
// normalizes its terminal failure.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = time.Second
)

// Policy retries transient failures. The zero value is not usable; use New.
type Policy struct {
	MaxRetries int
	BaseDelay  time.Duration

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(retry int, delay time.Duration, cause *models.FetchError)

	logger *events.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a policy. Non-positive values fall back to 3 retries and a 1s base.
func New(maxRetries int, baseDelay time.Duration, logger *events.Logger) *Policy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	return &Policy{
		MaxRetries: maxRetries,
		BaseDelay:  baseDelay,
		logger:     logger.WithField("component", "retry"),
		sleep:      sleepContext,
	}
}

// Backoff returns the delay before retry n (1-indexed): 2^(n-1) * base.
func Backoff(base time.Duration, n int) time.Duration {
	if n < 1 {
		return 0
	}
	return base << (n - 1)
}

// Do runs fn until it succeeds, fails terminally, or the retry budget is spent.
// Any returned error is a *models.FetchError.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempt := 0

	for {
		attempt++

		err := fn(ctx)
		if err == nil {
			return nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return cancelled(ctxErr, attempt)
		}

		fe := Classify(err)
		fe.Attempts = attempt

		if !IsRetryableStatus(fe.Status) || fe.Kind == models.KindUnknown {
			return fe
		}

		if attempt > p.MaxRetries {
			p.logger.WithFields(map[string]interface{}{
				"attempts": attempt,
				"status":   fe.Status,
			}).Warn("Retries exhausted")
			return fe
		}

		retryNum := attempt
		delay := Backoff(p.BaseDelay, retryNum)

		p.logger.WithFields(map[string]interface{}{
			"retry":  retryNum,
			"delay":  delay.String(),
			"status": fe.Status,
		}).Debug("Retrying request")

		if p.OnRetry != nil {
			p.OnRetry(retryNum, delay, fe)
		}

		sleep := p.sleep
		if sleep == nil {
			sleep = sleepContext
		}
		if err := sleep(ctx, delay); err != nil {
			return cancelled(err, attempt)
		}
	}
}

func cancelled(err error, attempts int) *models.FetchError {
	return &models.FetchError{
		Kind:      models.KindUnknown,
		Status:    models.StatusNetwork,
		Message:   "Request was cancelled.",
		Code:      models.ErrorCode(models.StatusNetwork),
		Retryable: true,
		Attempts:  attempts,
		Err:       err,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsCancelled reports whether err is a cancellation produced by Do.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
