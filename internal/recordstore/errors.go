package recordstore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrTimeout marks a call that did not complete within its budget. The
// upstream outcome of such a call is unknown.
var ErrTimeout = errors.New("upstream_timeout")

// UpstreamError is a non-timeout failure reported by, or on the way to, the
// record store. StatusCode is zero when no response was received.
type UpstreamError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	return e.Code()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Code is the stable error code exposed to callers.
func (e *UpstreamError) Code() string {
	if e.StatusCode == 0 {
		return "upstream_unreachable"
	}
	return fmt.Sprintf("upstream_%d", e.StatusCode)
}

// Rejected reports whether the record store refused the request itself as
// opposed to failing to serve it.
func (e *UpstreamError) Rejected() bool {
	return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

func classifyTransportError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %s", ErrTimeout, op)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}
