package models

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable classification of a terminal fetch failure.
type ErrorKind string

const (
	KindNetworkUnreachable ErrorKind = "NetworkUnreachable"
	KindBadRequest         ErrorKind = "BadRequest"
	KindUnauthorized       ErrorKind = "Unauthorized"
	KindForbidden          ErrorKind = "Forbidden"
	KindNotFound           ErrorKind = "NotFound"
	KindRequestTimeout     ErrorKind = "RequestTimeout"
	KindTooManyRequests    ErrorKind = "TooManyRequests"
	KindServerError        ErrorKind = "ServerError"
	KindGatewayTimeout     ErrorKind = "GatewayTimeout"
	KindUnknown            ErrorKind = "Unknown"
)

// StatusNetwork is the pseudo status used for failures that never produced
// an HTTP response.
const StatusNetwork = 0

// Sentinel errors
var (
	ErrEmptyToteID = errors.New("tote id cannot be empty")
	ErrNotFound    = errors.New("tote not found")
)

// HTTPError is a raw transport failure: either a non-2xx response or a
// network-level error (StatusCode 0).
type HTTPError struct {
	StatusCode int
	// BodyMessage is the "message" field of the response body, if any.
	BodyMessage string
	// Status is the transport's own description, e.g. "503 Service Unavailable".
	Status string
	Err    error
}

func (e *HTTPError) Error() string {
	switch {
	case e.StatusCode == StatusNetwork && e.Err != nil:
		return fmt.Sprintf("network error: %v", e.Err)
	case e.BodyMessage != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.BodyMessage)
	case e.Status != "":
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Status)
	default:
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
}

func (e *HTTPError) Unwrap() error {
	return e.Err
}

// FetchError is the normalized error surfaced after retries are exhausted
// or a terminal outcome is reached.
type FetchError struct {
	Kind      ErrorKind `json:"kind"`
	Status    int       `json:"status"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	Retryable bool      `json:"retryable"`
	Attempts  int       `json:"attempts"`
	Err       error     `json:"-"`
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets callers test for ErrNotFound regardless of the wrapped cause.
func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// AsFetchError extracts a FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindForStatus maps an HTTP-like status to the taxonomy.
func KindForStatus(status int) ErrorKind {
	switch status {
	case StatusNetwork:
		return KindNetworkUnreachable
	case http.StatusBadRequest:
		return KindBadRequest
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusRequestTimeout:
		return KindRequestTimeout
	case http.StatusTooManyRequests:
		return KindTooManyRequests
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable:
		return KindServerError
	case http.StatusGatewayTimeout:
		return KindGatewayTimeout
	default:
		return KindUnknown
	}
}

// StatusMessage returns the fixed user-facing message for a status, or ""
// when the status has none.
func StatusMessage(status int) string {
	switch status {
	case StatusNetwork:
		return "Network error. Please check your connection."
	case http.StatusBadRequest:
		return "Invalid request. Please check your input."
	case http.StatusUnauthorized:
		return "Unauthorized. Please log in."
	case http.StatusForbidden:
		return "Access forbidden."
	case http.StatusNotFound:
		return "Tote not found. Please check the barcode."
	case http.StatusRequestTimeout:
		return "Request timeout. Please try again."
	case http.StatusTooManyRequests:
		return "Too many requests. Please wait a moment."
	case http.StatusInternalServerError:
		return "Server error. Please try again later."
	case http.StatusBadGateway, http.StatusServiceUnavailable:
		return "Service temporarily unavailable."
	case http.StatusGatewayTimeout:
		return "Gateway timeout. Please try again."
	default:
		return ""
	}
}

// GenericErrorMessage is used when nothing more specific is known.
const GenericErrorMessage = "An unexpected error occurred."

// ErrorCode formats the stable code for a status.
func ErrorCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}
