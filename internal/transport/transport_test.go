package transport_test

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/transport"
)

const toteJSON = `{
	"toteId": "demo-tote-1",
	"items": [
		{"id": "1", "sku": "SKU-001", "name": "Widget", "quantity": 3},
		{"id": "2", "sku": "SKU-002", "name": "Gadget", "quantity": 10, "imageUrl": "https://img.example.com/2.png"}
	],
	"updatedAt": "2024-01-01T10:00:00Z"
}`

func newClient(t *testing.T, baseURL string, modify ...func(*config.APIConfig)) (*transport.HTTPClient, *bytes.Buffer) {
	t.Helper()

	cfg := &config.APIConfig{
		BaseURL:   baseURL + "/api",
		Timeout:   5 * time.Second,
		UserAgent: "test",
	}
	for _, m := range modify {
		m(cfg)
	}

	var buf bytes.Buffer
	logger := events.NewTestLogger(events.DebugLevel, "json", &buf)
	client := transport.NewHTTPClient(cfg, logger)
	t.Cleanup(func() { _ = client.Close() })
	return client, &buf
}

func TestFetchTote(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/totes/demo-tote-1", r.URL.Path)
		assert.Equal(t, "test", r.Header.Get("User-Agent"))
		assert.Equal(t, "req-1", r.Header.Get("X-Request-ID"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(toteJSON))
	}))
	defer server.Close()

	client, _ := newClient(t, server.URL)

	ctx := events.WithRequestID(context.Background(), "req-1")
	tote, err := client.FetchTote(ctx, "demo-tote-1")

	require.NoError(t, err)
	assert.Equal(t, "demo-tote-1", tote.ToteID)
	require.Len(t, tote.Items, 2)
	assert.Equal(t, "Widget", tote.Items[0].Name)
	assert.Nil(t, tote.Items[0].ImageURL)
	require.NotNil(t, tote.Items[1].ImageURL)
	assert.Equal(t, 10, tote.Items[1].Quantity)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), tote.UpdatedAt)
}

func TestFetchToteEscapesID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/totes/a%2Fb", r.URL.EscapedPath())
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newClient(t, server.URL)
	_, err := client.FetchTote(context.Background(), "a/b")
	require.Error(t, err)
}

func TestFetchToteErrorStatus(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "sanitized body message",
			status:      http.StatusNotFound,
			body:        `{"message": "<b>Tote</b> demo-tote-9 &amp; friends <script>alert(1)</script>not found"}`,
			wantMessage: "Tote demo-tote-9 & friends not found",
		},
		{
			name:        "error field fallback",
			status:      http.StatusBadRequest,
			body:        `{"error": "bad id"}`,
			wantMessage: "bad id",
		},
		{
			name:        "no body",
			status:      http.StatusServiceUnavailable,
			body:        "",
			wantMessage: "",
		},
		{
			name:        "non json body",
			status:      http.StatusBadGateway,
			body:        "<html>upstream down</html>",
			wantMessage: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := newClient(t, server.URL)
			_, err := client.FetchTote(context.Background(), "demo-tote-9")

			var httpErr *models.HTTPError
			require.ErrorAs(t, err, &httpErr)
			assert.Equal(t, tt.status, httpErr.StatusCode)
			assert.Equal(t, tt.wantMessage, httpErr.BodyMessage)
			assert.Equal(t, http.StatusText(tt.status), httpErr.Status[4:])
		})
	}
}

func TestFetchToteInvalidPayload(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"malformed json", `{"toteId":`, "decode tote"},
		{"missing tote id", `{"items": []}`, "invalid tote payload"},
		{"item without id", `{"toteId": "t-a-1", "items": [{"sku": "x", "quantity": 1}]}`, "invalid tote payload"},
		{"negative quantity", `{"toteId": "t-a-1", "items": [{"id": "1", "quantity": -2}]}`, "invalid tote payload"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, _ := newClient(t, server.URL)
			_, err := client.FetchTote(context.Background(), "t-a-1")

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)

			var httpErr *models.HTTPError
			assert.False(t, errors.As(err, &httpErr))
		})
	}
}

func TestFetchToteNetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, _ := newClient(t, url)
	_, err := client.FetchTote(context.Background(), "demo-tote-1")

	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, models.StatusNetwork, httpErr.StatusCode)
	assert.Error(t, httpErr.Err)
}

func TestFetchToteClientTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer server.Close()

	client, _ := newClient(t, server.URL, func(c *config.APIConfig) {
		c.Timeout = 20 * time.Millisecond
	})

	_, err := client.FetchTote(context.Background(), "demo-tote-1")

	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusRequestTimeout, httpErr.StatusCode)
}

func TestFetchToteCallerCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client, _ := newClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.FetchTote(ctx, "demo-tote-1")

	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, models.StatusNetwork, httpErr.StatusCode)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestToteExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/totes/demo-tote-1":
			_, _ = w.Write([]byte(toteJSON))
		case "/api/totes/broken-tote-1":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client, _ := newClient(t, server.URL)
	ctx := context.Background()

	exists, err := client.ToteExists(ctx, "demo-tote-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.ToteExists(ctx, "demo-tote-2")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.ToteExists(ctx, "broken-tote-1")
	assert.Error(t, err)
}

func TestCircuitBreaker(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.URL.Path == "/api/totes/missing-tote-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, buf := newClient(t, server.URL, func(c *config.APIConfig) {
		c.CircuitBreaker = config.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
		}
	})
	ctx := context.Background()

	// Not-found responses never trip the breaker.
	for i := 0; i < 3; i++ {
		_, err := client.FetchTote(ctx, "missing-tote-1")
		var httpErr *models.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	}
	assert.Equal(t, int32(3), hits.Load())

	for i := 0; i < 2; i++ {
		_, _ = client.FetchTote(ctx, "demo-tote-1")
	}
	assert.Equal(t, int32(5), hits.Load())

	_, err := client.FetchTote(ctx, "demo-tote-1")
	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.Equal(t, "circuit breaker open", httpErr.Status)
	assert.Equal(t, int32(5), hits.Load())
	assert.Contains(t, buf.String(), "Circuit breaker state changed")
}

func TestNewTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(toteJSON))
	}))
	defer server.Close()

	cfg := &config.APIConfig{BaseURL: server.URL + "/api/", Timeout: time.Second, UserAgent: "test"}
	tr := transport.NewTransport(cfg, events.Discard())
	defer tr.Close()

	tote, err := tr.FetchTote(context.Background(), "demo-tote-1")
	require.NoError(t, err)
	assert.Equal(t, 2, tote.ItemCount())
}
