package backend

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"

	"github.com/oppa-kitchen/storefront/internal/enum"
)

// Failure kinds. Every *Error unwraps to exactly one of these.
var (
	ErrUnavailable     = errors.New("order service unavailable")
	ErrTimeout         = errors.New("order service timed out")
	ErrRejected        = errors.New("order service rejected the request")
	ErrUnauthenticated = errors.New("order service rejected the credential")
	ErrInternal        = errors.New("order service internal error")
)

// ErrOrderNotFound is returned when an order lookup matches nothing.
var ErrOrderNotFound = errors.New("order not found")

// Error describes a failed upstream call. Status is the HTTP status a
// proxy should answer with; for relayed rejections it is the upstream's.
type Error struct {
	Kind    error
	Status  int
	Code    string
	Message string
	Fields  map[string][]string
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

// AsError extracts an *Error from err.
func AsError(err error) (*Error, bool) {
	var be *Error
	ok := errors.As(err, &be)
	return be, ok
}

// transportError classifies a failure to get any HTTP response at all.
func transportError(err error) *Error {
	var netErr net.Error
	var dnsErr *net.DNSError
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return &Error{
			Kind:    ErrTimeout,
			Status:  http.StatusGatewayTimeout,
			Code:    enum.ErrorCodeTimeout,
			Message: "Request timed out - order service may be down or slow",
		}
	case errors.Is(err, syscall.ECONNREFUSED):
		return &Error{
			Kind:    ErrUnavailable,
			Status:  http.StatusServiceUnavailable,
			Code:    enum.ErrorCodeConnectionRefused,
			Message: "Cannot connect to order service - check if it's running",
		}
	case errors.As(err, &dnsErr):
		return &Error{
			Kind:    ErrUnavailable,
			Status:  http.StatusServiceUnavailable,
			Code:    enum.ErrorCodeDNS,
			Message: "Cannot resolve order service address",
		}
	default:
		return &Error{
			Kind:    ErrUnavailable,
			Status:  http.StatusServiceUnavailable,
			Code:    enum.ErrorCodeNetwork,
			Message: "Network error: " + err.Error(),
		}
	}
}

// statusError builds the error for a well-formed non-2xx upstream answer.
func statusError(resp *Response, fallback string) *Error {
	msg := resp.Message()
	if msg == "" {
		msg = fallback
	}
	e := &Error{Status: resp.Status, Message: msg, Fields: resp.Fields()}
	switch {
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		e.Kind, e.Code = ErrUnauthenticated, enum.ErrorCodeUnauthenticated
	case resp.Status == http.StatusGatewayTimeout:
		e.Kind, e.Code = ErrTimeout, enum.ErrorCodeTimeout
	case resp.Status == http.StatusBadGateway || resp.Status == http.StatusServiceUnavailable:
		e.Kind, e.Code = ErrUnavailable, enum.ErrorCodeNetwork
	case resp.Status >= 500:
		e.Kind, e.Code = ErrInternal, enum.ErrorCodeInternal
	default:
		e.Kind, e.Code = ErrRejected, enum.ErrorCodeUpstreamRejected
	}
	return e
}
