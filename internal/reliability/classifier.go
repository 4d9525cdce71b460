package reliability

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UpstreamError reports a failed call to an external dependency along with
// the HTTP status when one was observed. Status 0 means the request never
// produced a response (dial failure, reset, timeout).
type UpstreamError struct {
	Source string
	Status int
	Detail string
}

func (e *UpstreamError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s status %d: %s", e.Source, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Source, e.Detail)
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether a later identical call could plausibly
// succeed. Transport-level failures and throttling are retryable; client
// errors and caller-initiated cancellation are not.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		if ue.Status == 0 {
			return true
		}
		return IsRetryableHTTPStatus(ue.Status)
	}

	// Unwrapped transport errors from net/http read as connection trouble.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "timeout")
}
