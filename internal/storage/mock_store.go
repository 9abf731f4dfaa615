package storage

import (
	"sync"
)

// MockStore provides an in-memory implementation for testing.
type MockStore struct {
	mu       sync.Mutex
	barcodes []string

	// Error injection
	LoadErr error
	SaveErr error

	// Call tracking
	saves  int
	closed bool
}

// NewMockStore creates a mock store holding barcodes.
func NewMockStore(barcodes ...string) *MockStore {
	return &MockStore{barcodes: append([]string{}, barcodes...)}
}

// Load returns a copy of the stored list.
func (m *MockStore) Load() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return append([]string{}, m.barcodes...), nil
}

// Save stores a copy of barcodes.
func (m *MockStore) Save(barcodes []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.barcodes = append([]string{}, barcodes...)
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Barcodes returns what was last saved.
func (m *MockStore) Barcodes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.barcodes...)
}

// SaveCount returns the number of Save calls.
func (m *MockStore) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

// IsClosed reports whether Close was called.
func (m *MockStore) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
