package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/TheMichaelB/totescan/internal/models"
)

// MockTransport provides a mock implementation for testing.
type MockTransport struct {
	mu sync.Mutex

	// Response configuration
	Totes map[string]*models.ToteContents

	// Error injection. Scripted errors are consumed one per request before
	// falling back to Errors, then Totes.
	Errors   map[string]error
	Scripted map[string][]error

	// Delay holds every FetchTote for this long, or until Release is closed.
	Delay   time.Duration
	Release chan struct{}

	// Request tracking
	FetchRequests  []string
	ExistsRequests []string

	closed bool
}

// NewMockTransport creates a mock transport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		Totes:          make(map[string]*models.ToteContents),
		Errors:         make(map[string]error),
		Scripted:       make(map[string][]error),
		FetchRequests:  []string{},
		ExistsRequests: []string{},
	}
}

// FetchTote mocks the tote lookup.
func (m *MockTransport) FetchTote(ctx context.Context, toteID string) (*models.ToteContents, error) {
	m.mu.Lock()
	m.FetchRequests = append(m.FetchRequests, toteID)
	delay, release := m.Delay, m.Release
	m.mu.Unlock()

	if err := m.wait(ctx, delay, release); err != nil {
		return nil, &models.HTTPError{StatusCode: models.StatusNetwork, Err: err}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if script := m.Scripted[toteID]; len(script) > 0 {
		m.Scripted[toteID] = script[1:]
		if script[0] != nil {
			return nil, script[0]
		}
	} else if err, ok := m.Errors[toteID]; ok {
		return nil, err
	}

	if tote, ok := m.Totes[toteID]; ok {
		return tote, nil
	}

	return nil, &models.HTTPError{StatusCode: http.StatusNotFound, Status: "404 Not Found"}
}

// ToteExists mocks the existence probe.
func (m *MockTransport) ToteExists(ctx context.Context, toteID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ExistsRequests = append(m.ExistsRequests, toteID)

	if err, ok := m.Errors[toteID]; ok {
		return false, err
	}
	_, ok := m.Totes[toteID]
	return ok, nil
}

// Close mocks connection closing.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockTransport) wait(ctx context.Context, delay time.Duration, release chan struct{}) error {
	if delay <= 0 && release == nil {
		return nil
	}

	var timeout <-chan time.Time
	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case <-timeout:
	case <-release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Helper methods for test setup

// AddTote registers a tote response.
func (m *MockTransport) AddTote(tote *models.ToteContents) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Totes[tote.ToteID] = tote
}

// AddError sets a persistent error for a specific tote.
func (m *MockTransport) AddError(toteID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[toteID] = err
}

// Script queues per-request outcomes for a tote; nil entries fall through to
// the configured response.
func (m *MockTransport) Script(toteID string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Scripted[toteID] = append(m.Scripted[toteID], errs...)
}

// FetchCount returns how many fetches were issued for toteID.
func (m *MockTransport) FetchCount(toteID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, id := range m.FetchRequests {
		if id == toteID {
			n++
		}
	}
	return n
}

// IsClosed reports whether Close was called.
func (m *MockTransport) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
