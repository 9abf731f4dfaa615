package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/models"
)

// LogEntry represents a captured log entry for testing
type LogEntry struct {
	Level   string                 `json:"level"`
	Message string                 `json:"msg"`
	Time    time.Time              `json:"time"`
	Fields  map[string]interface{} `json:"-"`
}

// Failure is a scripted response returned instead of the tote.
type Failure struct {
	Status  int
	Message string
}

// TestServer is a fake tote API for integration tests.
type TestServer struct {
	*httptest.Server

	mu       sync.RWMutex
	totes    map[string]*models.ToteContents
	failures map[string][]Failure
	requests map[string]int
	delay    time.Duration
	release  chan struct{}

	total      atomic.Int64
	requestIDs sync.Map
}

// NewTestServer creates a new test HTTP server.
func NewTestServer() *TestServer {
	ts := &TestServer{
		totes:    make(map[string]*models.ToteContents),
		failures: make(map[string][]Failure),
		requests: make(map[string]int),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/totes/", ts.handleTote)

	ts.Server = httptest.NewServer(mux)
	return ts
}

// AddTote makes a tote available.
func (ts *TestServer) AddTote(tote *models.ToteContents) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.totes[tote.ToteID] = tote
}

// FailNext queues failures for toteID. They are served in order before the
// tote (or 404) is returned.
func (ts *TestServer) FailNext(toteID string, failures ...Failure) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.failures[toteID] = append(ts.failures[toteID], failures...)
}

// SetDelay slows every response down.
func (ts *TestServer) SetDelay(d time.Duration) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.delay = d
}

// Hold blocks every request until the returned func is called.
func (ts *TestServer) Hold() func() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ch := make(chan struct{})
	ts.release = ch

	var once sync.Once
	return func() {
		once.Do(func() {
			ts.mu.Lock()
			ts.release = nil
			ts.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns how many requests were made for toteID.
func (ts *TestServer) Requests(toteID string) int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return ts.requests[toteID]
}

// TotalRequests returns the number of requests served.
func (ts *TestServer) TotalRequests() int {
	return int(ts.total.Load())
}

// SawRequestID reports whether any request carried the X-Request-ID header.
func (ts *TestServer) SawRequestID() bool {
	seen := false
	ts.requestIDs.Range(func(_, _ any) bool {
		seen = true
		return false
	})
	return seen
}

func (ts *TestServer) handleTote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/totes/")
	ts.total.Add(1)
	if reqID := r.Header.Get("X-Request-ID"); reqID != "" {
		ts.requestIDs.Store(reqID, struct{}{})
	}

	ts.mu.Lock()
	ts.requests[id]++
	delay, release := ts.delay, ts.release

	var failure *Failure
	if queued := ts.failures[id]; len(queued) > 0 {
		failure = &queued[0]
		ts.failures[id] = queued[1:]
	}
	tote, ok := ts.totes[id]
	ts.mu.Unlock()

	if release != nil {
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	switch {
	case failure != nil:
		w.WriteHeader(failure.Status)
		if failure.Message != "" {
			writeJSON(w, map[string]string{"message": failure.Message})
		}
	case !ok:
		w.WriteHeader(http.StatusNotFound)
		writeJSON(w, map[string]string{"message": "Tote not found"})
	default:
		writeJSON(w, tote)
	}
}

// TestHelpers provides common test helper functions.
type TestHelpers struct {
	t       *testing.T
	tempDir string
}

// NewTestHelpers creates test helpers.
func NewTestHelpers(t *testing.T) *TestHelpers {
	return &TestHelpers{
		t:       t,
		tempDir: t.TempDir(),
	}
}

// TempDir returns the temporary directory for this test.
func (h *TestHelpers) TempDir() string {
	return h.tempDir
}

// CreateTempFile creates a temporary file with content.
func (h *TestHelpers) CreateTempFile(name, content string) string {
	path := filepath.Join(h.tempDir, name)

	err := os.MkdirAll(filepath.Dir(path), 0755)
	require.NoError(h.t, err)

	err = os.WriteFile(path, []byte(content), 0644)
	require.NoError(h.t, err)

	return path
}

// AssertFileExists checks that a file exists.
func (h *TestHelpers) AssertFileExists(path string) {
	_, err := os.Stat(path)
	assert.NoError(h.t, err, "File should exist: %s", path)
}

// AssertFileContent checks file content matches expected.
func (h *TestHelpers) AssertFileContent(path, expectedContent string) {
	content, err := os.ReadFile(path)
	require.NoError(h.t, err)
	assert.Equal(h.t, expectedContent, string(content))
}

// TestContext creates a test context with reasonable timeout.
func TestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// TestConfigWithDir returns a config pointing at baseURL with fast retries
// and all files under dataDir.
func TestConfigWithDir(baseURL, dataDir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = baseURL
	cfg.API.Timeout = 5 * time.Second
	cfg.API.RetryBaseDelay = time.Millisecond
	cfg.History.Path = filepath.Join(dataDir, "recent")
	cfg.Log = config.LogConfig{
		Level:  "debug",
		Format: "json",
	}
	return cfg
}

// WaitForCondition waits for a condition to be true with timeout.
func WaitForCondition(t *testing.T, condition func() bool, timeout time.Duration, message string) {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			t.Fatalf("Timeout waiting for condition: %s", message)
		case <-ticker.C:
			if condition() {
				return
			}
		}
	}
}

// LogOutput captures JSON log output for testing.
type LogOutput struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogOutput creates a new log output capturer.
func NewLogOutput() *LogOutput {
	return &LogOutput{}
}

// Write implements io.Writer to capture log output.
func (lo *LogOutput) Write(p []byte) (n int, err error) {
	var entry LogEntry
	if err := json.Unmarshal(p, &entry); err == nil {
		_ = json.Unmarshal(p, &entry.Fields)
		lo.mu.Lock()
		lo.entries = append(lo.entries, entry)
		lo.mu.Unlock()
	}
	return len(p), nil
}

// Entries returns captured log entries.
func (lo *LogOutput) Entries() []LogEntry {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	entries := make([]LogEntry, len(lo.entries))
	copy(entries, lo.entries)
	return entries
}

// HasLevel checks if any log entry has the specified level.
func (lo *LogOutput) HasLevel(level string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if entry.Level == level {
			return true
		}
	}
	return false
}

// HasMessage checks if any log entry contains the message.
func (lo *LogOutput) HasMessage(message string) bool {
	lo.mu.RLock()
	defer lo.mu.RUnlock()

	for _, entry := range lo.entries {
		if strings.Contains(entry.Message, message) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(v)
}
