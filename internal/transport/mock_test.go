package transport_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/totescan/internal/models"
	"github.com/TheMichaelB/totescan/internal/transport"
)

func TestMockTransport(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddTote(&models.ToteContents{ToteID: "demo-tote-1", Items: []models.ToteItem{{ID: "1"}}})
	mock.AddError("broken-tote-1", &models.HTTPError{StatusCode: http.StatusInternalServerError})
	mock.Script("demo-tote-1", &models.HTTPError{StatusCode: http.StatusServiceUnavailable}, nil)

	ctx := context.Background()

	_, err := mock.FetchTote(ctx, "demo-tote-1")
	require.Error(t, err)

	_, err = mock.FetchTote(ctx, "demo-tote-1")
	require.NoError(t, err)

	tote, err := mock.FetchTote(ctx, "demo-tote-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tote.ItemCount())

	_, err = mock.FetchTote(ctx, "broken-tote-1")
	var httpErr *models.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)

	_, err = mock.FetchTote(ctx, "unknown-tote-1")
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 404, httpErr.StatusCode)

	assert.Equal(t, 3, mock.FetchCount("demo-tote-1"))

	exists, err := mock.ToteExists(ctx, "demo-tote-1")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, mock.Close())
	assert.True(t, mock.IsClosed())
}

func TestMockTransportRelease(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.AddTote(&models.ToteContents{ToteID: "demo-tote-1"})
	mock.Release = make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := mock.FetchTote(context.Background(), "demo-tote-1")
		done <- err
	}()

	select {
	case <-done:
		t.Fatal("fetch returned before release")
	case <-time.After(20 * time.Millisecond):
	}

	close(mock.Release)
	assert.NoError(t, <-done)
}

func TestMockTransportCancelled(t *testing.T) {
	mock := transport.NewMockTransport()
	mock.Delay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mock.FetchTote(ctx, "demo-tote-1")
	assert.ErrorIs(t, err, context.Canceled)
}
