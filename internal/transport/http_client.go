package transport

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/sony/gobreaker"
	"golang.org/x/net/http2"

	"github.com/TheMichaelB/totescan/internal/config"
	"github.com/TheMichaelB/totescan/internal/events"
	"github.com/TheMichaelB/totescan/internal/models"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// HTTPClient performs single-shot requests against the tote API. Retries are
// the caller's concern.
type HTTPClient struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *events.Logger

	breaker  *gobreaker.CircuitBreaker
	validate *validator.Validate
	sanitize *bluemonday.Policy
}

// NewHTTPClient creates an HTTP client.
func NewHTTPClient(cfg *config.APIConfig, logger *events.Logger) *HTTPClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}

	// Configure HTTP/2
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	c := &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		logger:    logger.WithField("component", "http_client"),
		validate:  validator.New(),
		sanitize:  bluemonday.StrictPolicy(),
	}

	if cfg.CircuitBreaker.Enabled {
		c.breaker = newBreaker(cfg.CircuitBreaker, c.logger)
	}

	return c
}

func newBreaker(cfg config.CircuitBreakerConfig, logger *events.Logger) *gobreaker.CircuitBreaker {
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 10
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "tote-api",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
}

// FetchTote issues one GET for a tote's contents.
func (c *HTTPClient) FetchTote(ctx context.Context, toteID string) (*models.ToteContents, error) {
	body, err := c.get(ctx, c.totePath(toteID))
	if err != nil {
		return nil, err
	}

	var tote models.ToteContents
	if err := json.Unmarshal(body, &tote); err != nil {
		return nil, fmt.Errorf("decode tote: %w", err)
	}

	if err := c.validate.Struct(&tote); err != nil {
		return nil, fmt.Errorf("invalid tote payload: %w", err)
	}

	c.logger.WithFields(map[string]interface{}{
		"tote_id": tote.ToteID,
		"items":   len(tote.Items),
	}).Debug("Fetched tote")

	return &tote, nil
}

// ToteExists reports whether the backend knows toteID. A 404 is a definite
// false; every other failure is returned as an error.
func (c *HTTPClient) ToteExists(ctx context.Context, toteID string) (bool, error) {
	_, err := c.get(ctx, c.totePath(toteID))
	if err == nil {
		return true, nil
	}

	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Close releases idle connections.
func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) totePath(toteID string) string {
	return fmt.Sprintf("%s/totes/%s", c.baseURL, url.PathEscape(toteID))
}

// breakerResult lets non-transient failures pass through the breaker without
// counting against it.
type breakerResult struct {
	body []byte
	err  error
}

func (c *HTTPClient) get(ctx context.Context, target string) ([]byte, error) {
	if c.breaker == nil {
		return c.doGet(ctx, target)
	}

	res, err := c.breaker.Execute(func() (interface{}, error) {
		body, err := c.doGet(ctx, target)
		if err != nil && countsAsFailure(err) {
			return nil, err
		}
		return breakerResult{body: body, err: err}, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, &models.HTTPError{
			StatusCode: http.StatusServiceUnavailable,
			Status:     "circuit breaker open",
			Err:        err,
		}
	case err != nil:
		return nil, err
	}

	r := res.(breakerResult)
	return r.body, r.err
}

func countsAsFailure(err error) bool {
	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == 0 || httpErr.StatusCode >= 500
	}
	return false
}

func (c *HTTPClient) doGet(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if id := events.GetRequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	c.logger.WithFields(map[string]interface{}{
		"method": http.MethodGet,
		"url":    target,
	}).Debug("Sending request")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, networkError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &models.HTTPError{StatusCode: models.StatusNetwork, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.WithFields(map[string]interface{}{
		"status": resp.StatusCode,
		"size":   len(body),
	}).Debug("Received response")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &models.HTTPError{
			StatusCode:  resp.StatusCode,
			BodyMessage: c.bodyMessage(body),
			Status:      resp.Status,
		}
	}

	return body, nil
}

// networkError maps a failed round trip. Client-side timeouts become 408 so
// they are retried like a server timeout; the caller's own deadline is not.
func networkError(ctx context.Context, err error) error {
	var netErr net.Error
	if ctx.Err() == nil && errors.As(err, &netErr) && netErr.Timeout() {
		return &models.HTTPError{StatusCode: http.StatusRequestTimeout, Status: "client timeout", Err: err}
	}
	return &models.HTTPError{StatusCode: models.StatusNetwork, Err: err}
}

// bodyMessage extracts and sanitizes the "message" field of an error body.
func (c *HTTPClient) bodyMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	msg := payload.Message
	if msg == "" {
		msg = payload.Error
	}

	return strings.TrimSpace(html.UnescapeString(c.sanitize.Sanitize(msg)))
}
