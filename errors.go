package learnhub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failure at the request boundary.
type ErrorKind int

const (
	// KindUnknown is any error not produced by this SDK.
	KindUnknown ErrorKind = iota
	// KindTransport means no response was received.
	KindTransport
	// KindUnauthorized is an HTTP 401.
	KindUnauthorized
	// KindForbidden is an HTTP 403.
	KindForbidden
	// KindNotFound is an HTTP 404.
	KindNotFound
	// KindHTTP is any other non-2xx status.
	KindHTTP
	// KindRejected is a well-formed response reporting a business failure.
	KindRejected
	// KindInvalid is a client-side validation failure; nothing was sent.
	KindInvalid
	// KindDecode means the response body could not be decoded.
	KindDecode
)

var kindNames = map[ErrorKind]string{
	KindUnknown:      "unknown",
	KindTransport:    "transport",
	KindUnauthorized: "unauthorized",
	KindForbidden:    "forbidden",
	KindNotFound:     "not_found",
	KindHTTP:         "http",
	KindRejected:     "rejected",
	KindInvalid:      "invalid",
	KindDecode:       "decode",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrNoToken is returned by a TokenStore when no usable token is persisted.
var ErrNoToken = errors.New("learnhub: no session token")

// Error is the typed failure decoded once at the request boundary.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 when no response was received
	Message string // human-readable message from the backend, may be empty
	Err     error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Status != 0:
		return fmt.Sprintf("learnhub: %s (%d): %s", e.Kind, e.Status, e.Message)
	case e.Message != "":
		return fmt.Sprintf("learnhub: %s: %s", e.Kind, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("learnhub: %s: %v", e.Kind, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("learnhub: %s (%d)", e.Kind, e.Status)
	}
	return "learnhub: " + e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// KindForStatus maps an HTTP status code to an ErrorKind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized:
		return KindUnauthorized
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	}
	return KindHTTP
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the backend-provided message carried by err, or "".
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

// IsRetryable reports whether a failed read may be attempted again.
// Unauthorized, forbidden and not-found are terminal, as are validation
// failures and cancelled contexts. A request timeout is a transport failure
// and stays retryable; callers stop on their own context being done.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindUnauthorized, KindForbidden, KindNotFound, KindInvalid:
		return false
	}
	return true
}
