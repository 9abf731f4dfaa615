package validation

import (
	"context"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/TheMichaelB/totescan/internal/events"
)

// Existence is the outcome of an existence lookup.
type Existence int

const (
	// ExistenceUnknown means the lookup itself failed; callers must not block on it.
	ExistenceUnknown Existence = iota
	ExistenceConfirmed
	ExistenceMissing
)

func (e Existence) String() string {
	switch e {
	case ExistenceConfirmed:
		return "confirmed"
	case ExistenceMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// Prober answers whether a tote id is known to the backend.
type Prober interface {
	ToteExists(ctx context.Context, toteID string) (bool, error)
}

// ExistenceChecker layers an optional backend lookup on top of the
// synchronous checks. Concurrent lookups for one id share a single probe.
type ExistenceChecker struct {
	prober Prober
	group  singleflight.Group
	logger *events.Logger
}

// NewExistenceChecker creates a checker backed by prober.
func NewExistenceChecker(prober Prober, logger *events.Logger) *ExistenceChecker {
	return &ExistenceChecker{
		prober: prober,
		logger: logger.WithField("component", "existence_checker"),
	}
}

// Check looks up toteID. Any probe failure, including ctx expiry, yields
// ExistenceUnknown.
func (c *ExistenceChecker) Check(ctx context.Context, toteID string) Existence {
	toteID = strings.TrimSpace(toteID)
	if toteID == "" {
		return ExistenceUnknown
	}

	ch := c.group.DoChan(toteID, func() (interface{}, error) {
		// Detached so one caller's cancellation doesn't fail the others.
		return c.prober.ToteExists(context.WithoutCancel(ctx), toteID)
	})

	select {
	case <-ctx.Done():
		c.logger.WithField("tote_id", toteID).Debug("Existence check abandoned")
		return ExistenceUnknown
	case res := <-ch:
		if res.Err != nil {
			c.logger.WithError(res.Err).WithField("tote_id", toteID).Warn("Existence check failed, not blocking scan")
			return ExistenceUnknown
		}
		if res.Val.(bool) {
			return ExistenceConfirmed
		}
		return ExistenceMissing
	}
}

// CheckAsync runs Check in the background. The channel receives exactly one
// value and is then closed.
func (c *ExistenceChecker) CheckAsync(ctx context.Context, toteID string) <-chan Existence {
	out := make(chan Existence, 1)
	go func() {
		defer close(out)
		out <- c.Check(ctx, toteID)
	}()
	return out
}

// ValidateWithExistence runs the synchronous checks and, only when they pass
// and a checker is configured, the existence lookup. A definite miss adds
// TagBarcodeNotExists; an unknown outcome leaves the result untouched.
func (v *Validator) ValidateWithExistence(ctx context.Context, raw string, checker *ExistenceChecker) Result {
	result := v.Validate(raw)
	if !result.Valid || checker == nil {
		return result
	}

	if checker.Check(ctx, strings.TrimSpace(raw)) == ExistenceMissing {
		return result.WithTag(TagBarcodeNotExists)
	}
	return result
}
