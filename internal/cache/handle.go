package cache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/TheMichaelB/totescan/internal/models"
)

// Handle is a shared, pending-or-settled fetch. Every caller attached to
// the same handle observes the same single outcome.
type Handle struct {
	key       string
	createdAt time.Time
	done      chan struct{}

	// Written once before done is closed.
	tote *models.ToteContents
	err  *models.FetchError

	subscribers atomic.Int32
	recorded    atomic.Bool
	timer       *time.Timer
}

func newHandle(key string, createdAt time.Time) *Handle {
	return &Handle{
		key:       key,
		createdAt: createdAt,
		done:      make(chan struct{}),
	}
}

func (h *Handle) settle(tote *models.ToteContents, err *models.FetchError) {
	h.tote = tote
	h.err = err
	close(h.done)
}

// Key returns the trimmed tote id.
func (h *Handle) Key() string { return h.key }

// CreatedAt returns when the fetch started.
func (h *Handle) CreatedAt() time.Time { return h.createdAt }

// Done is closed once the fetch has settled.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Settled reports whether the outcome is available.
func (h *Handle) Settled() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the fetch settles or ctx is done. A ctx error is
// returned as is; the fetch itself keeps running for other callers.
func (h *Handle) Wait(ctx context.Context) (*models.ToteContents, error) {
	select {
	case <-h.done:
		return h.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the settled outcome. It must only be called after Done.
func (h *Handle) Result() (*models.ToteContents, error) {
	if h.err != nil {
		return nil, h.err
	}
	return h.tote, nil
}

// Subscribers returns how many Get calls attached to this handle.
func (h *Handle) Subscribers() int {
	return int(h.subscribers.Load())
}

// MarkRecorded returns true for the first caller only; used to append one
// history entry per settled fetch.
func (h *Handle) MarkRecorded() bool {
	return h.recorded.CompareAndSwap(false, true)
}
