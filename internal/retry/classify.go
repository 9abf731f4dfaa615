package retry

import (
	"errors"
	"net"
	"net/http"

	"github.com/TheMichaelB/totescan/internal/models"
)

var retryableStatuses = map[int]bool{
	models.StatusNetwork:           true,
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// IsRetryableStatus reports whether a failure with this status is transient.
func IsRetryableStatus(status int) bool {
	return retryableStatuses[status]
}

// Classify converts a raw fetch failure into the normalized error.
//
// Message precedence: the body's own message, then the fixed per-status
// message, then the transport's description, then the generic fallback.
func Classify(err error) *models.FetchError {
	if err == nil {
		return nil
	}

	if fe, ok := models.AsFetchError(err); ok {
		return fe
	}

	var httpErr *models.HTTPError
	if errors.As(err, &httpErr) {
		return fromStatus(httpErr.StatusCode, httpErr.BodyMessage, httpErr.Status, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fromStatus(http.StatusRequestTimeout, "", "", err)
		}
		return fromStatus(models.StatusNetwork, "", "", err)
	}

	// Anything else (decode failures, breaker errors that slipped through) is
	// terminal and keeps the transport's own wording.
	return &models.FetchError{
		Kind:      models.KindUnknown,
		Status:    models.StatusNetwork,
		Message:   firstNonEmpty(err.Error(), models.GenericErrorMessage),
		Code:      models.ErrorCode(models.StatusNetwork),
		Retryable: true,
		Err:       err,
	}
}

func fromStatus(status int, bodyMessage, transportMessage string, cause error) *models.FetchError {
	return &models.FetchError{
		Kind:      models.KindForStatus(status),
		Status:    status,
		Message:   firstNonEmpty(bodyMessage, models.StatusMessage(status), transportMessage, models.GenericErrorMessage),
		Code:      models.ErrorCode(status),
		Retryable: status != http.StatusNotFound,
		Err:       cause,
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
