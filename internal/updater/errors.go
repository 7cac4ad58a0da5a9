package updater

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Text statuses reported by FetchError, named after the strings browser
// dashboards already switch on.
const (
	StatusTimeout     = "timeout"
	StatusError       = "error"
	StatusParserError = "parsererror"
)

// FetchError describes a failed poll of the endpoint.
type FetchError struct {
	Endpoint   string
	TextStatus string // StatusTimeout, StatusError or StatusParserError
	StatusCode int    // HTTP status, 0 when no response was received
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("update %s: %s (HTTP %d): %v", e.Endpoint, e.TextStatus, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("update %s: %s: %v", e.Endpoint, e.TextStatus, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// TextStatus extracts the text status from err, or "" if err is not a
// FetchError.
func TextStatus(err error) string {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.TextStatus
	}
	return ""
}

// transportStatus classifies a transport-level failure.
func transportStatus(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return StatusTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return StatusTimeout
	}
	return StatusError
}
