package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"syscall"

	"github.com/aawaaz/complaint-analyzer/internal/gateway"
)

// ErrorKind classifies a failed gateway exchange.
type ErrorKind string

const (
	KindTimeout            ErrorKind = "timeout"
	KindNetworkUnavailable ErrorKind = "network_unavailable"
	KindServerRejected     ErrorKind = "server_rejected"
	KindNoResponse         ErrorKind = "no_response"
	KindUnexpected         ErrorKind = "unexpected"
)

// Messages shown to the user for each kind.
const (
	MsgTimeout            = `Request timeout. Please check the "All Records" view - your complaint may have been saved.`
	MsgNetworkUnavailable = "Cannot connect to the classification service. Please check that %s is reachable."
	MsgNoResponse         = "No response from server."
)

// ClassifiedError is a gateway failure translated for the presentation layer.
type ClassifiedError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Status  int       `json:"status,omitempty"`
	Detail  string    `json:"detail,omitempty"`

	cause error
}

func (e *ClassifiedError) Error() string { return e.Message }

func (e *ClassifiedError) Unwrap() error { return e.cause }

// ClassifyError maps a gateway error to the taxonomy. The first matching
// rule wins: timeout, network unavailable, server rejected, no response,
// unexpected.
func ClassifyError(err error, endpoint string) *ClassifiedError {
	if err == nil {
		return nil
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	switch {
	case isTimeout(err):
		return &ClassifiedError{Kind: KindTimeout, Message: MsgTimeout, cause: err}
	case isUnreachable(err):
		return &ClassifiedError{Kind: KindNetworkUnavailable, Message: fmt.Sprintf(MsgNetworkUnavailable, endpoint), cause: err}
	}

	if se, ok := gateway.IsStatus(err); ok {
		msg := se.Detail
		if msg == "" {
			msg = fmt.Sprintf("Server error: %d", se.Status)
		}
		return &ClassifiedError{Kind: KindServerRejected, Message: msg, Status: se.Status, Detail: se.Detail, cause: err}
	}

	// A status line arrived, so a truncated body is not a missing response.
	if _, ok := gateway.IsReadError(err); ok {
		return &ClassifiedError{Kind: KindUnexpected, Message: err.Error(), cause: err}
	}

	if isNoResponse(err) {
		return &ClassifiedError{Kind: KindNoResponse, Message: MsgNoResponse, cause: err}
	}

	msg := err.Error()
	if msg == "" {
		msg = "An unexpected error occurred"
	}
	return &ClassifiedError{Kind: KindUnexpected, Message: msg, cause: err}
}

// classifyFetchError classifies projection fetch errors; a fetch that runs
// into its ceiling is reported as network unavailable.
func classifyFetchError(err error, endpoint string) *ClassifiedError {
	ce := ClassifyError(err, endpoint)
	if ce != nil && ce.Kind == KindTimeout {
		return &ClassifiedError{
			Kind:    KindNetworkUnavailable,
			Message: fmt.Sprintf(MsgNetworkUnavailable, endpoint),
			cause:   err,
		}
	}
	return ce
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isUnreachable(err error) bool {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}

func isNoResponse(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		// net/http reports a peer that hung up before answering this way.
		return strings.Contains(urlErr.Err.Error(), "server closed") ||
			strings.Contains(urlErr.Err.Error(), "connection reset")
	}
	return false
}
