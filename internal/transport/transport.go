package transport

import (
	"context"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
)

// Transport is the outbound collaborator: fetch tote contents by id.
// Failures are *models.HTTPError (status 0 for network-level errors) or a
// plain error when the body could not be decoded.
type Transport interface {
	FetchTote(ctx context.Context, toteID string) (*models.ToteContents, error)
	ToteExists(ctx context.Context, toteID string) (bool, error)

	// Lifecycle
	Close() error
}

// NewTransport creates the HTTP-backed transport.
func NewTransport(cfg *config.APIConfig, logger *events.Logger) Transport {
	return NewHTTPClient(cfg, logger)
}
