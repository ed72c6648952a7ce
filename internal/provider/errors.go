package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// Kind classifies provider errors for retry decisions.
type Kind int

const (
	// Transient failures may succeed on retry: timeouts, rate limits, 5xx, network.
	Transient Kind = iota + 1
	// Permanent failures will not succeed on retry: bad credentials, malformed requests.
	Permanent
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// Error wraps backend failures with a retry classification.
type Error struct {
	Kind       Kind
	Provider   string
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Cause      error
}

func (e *Error) Error() string {
	prefix := "provider"
	if e.Provider != "" {
		prefix = e.Provider
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s %s error [%d]: %s", prefix, e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s error: %s", prefix, e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ClassifyHTTPStatus classifies an HTTP error response.
func ClassifyHTTPStatus(status int, body string) *Error {
	err := &Error{
		StatusCode: status,
		Message:    fmt.Sprintf("HTTP %d: %s", status, truncate(body, 200)),
	}

	switch {
	case status == http.StatusTooManyRequests:
		err.Kind = Transient
		err.RetryAfter = time.Second
	case status == http.StatusRequestTimeout:
		err.Kind = Transient
	case status >= 500 && status < 600:
		err.Kind = Transient
	default:
		// 400, 401, 403, 404, 422 and anything else the backend rejects.
		err.Kind = Permanent
	}
	return err
}

// Classify converts any error into a provider error.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &Error{Kind: Transient, Message: "request timed out", Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &Error{Kind: Transient, Message: "network error: " + truncate(err.Error(), 100), Cause: err}
	}

	msg := err.Error()
	for _, marker := range []string{
		"connection refused", "connection reset", "no such host",
		"network is unreachable", "i/o timeout", "EOF",
	} {
		if strings.Contains(msg, marker) {
			return &Error{Kind: Transient, Message: "network error: " + truncate(msg, 100), Cause: err}
		}
	}

	return &Error{Kind: Permanent, Message: truncate(msg, 200), Cause: err}
}

// IsTransient reports whether err is a retryable provider failure.
func IsTransient(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Transient
}

// IsPermanent reports whether err is a non-retryable provider failure.
func IsPermanent(err error) bool {
	var pe *Error
	return errors.As(err, &pe) && pe.Kind == Permanent
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
