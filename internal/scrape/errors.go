package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// Kind classifies a scrape failure.
type Kind string

const (
	KindNetwork        Kind = "NETWORK"
	KindParsing        Kind = "PARSING"
	KindValidation     Kind = "VALIDATION"
	KindAuthentication Kind = "AUTHENTICATION"
	KindRateLimit      Kind = "RATE_LIMIT"
	KindBlocked        Kind = "BLOCKED"
	KindTimeout        Kind = "TIMEOUT"
	KindUnknown        Kind = "UNKNOWN"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNetwork, KindParsing, KindValidation, KindAuthentication,
		KindRateLimit, KindBlocked, KindTimeout, KindUnknown:
		return true
	}
	return false
}

// Error is a classified failure recorded against a scrape attempt.  Fatal
// errors make the whole attempt non-retryable; VALIDATION errors are always
// fatal.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Fatal      bool
}

// NewError builds an Error of the given kind.
func NewError(kind Kind, message string) Error {
	if !kind.Valid() {
		kind = KindUnknown
	}
	return Error{Kind: kind, Message: message, Fatal: kind == KindValidation}
}

// Errorf is NewError with fmt formatting.
func Errorf(kind Kind, format string, args ...any) Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func (e Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// ErrorKind exposes the classification as a plain string.
func (e Error) ErrorKind() string { return string(e.Kind) }

// WithRetryAfter returns a copy carrying a retry hint.
func (e Error) WithRetryAfter(d time.Duration) Error {
	e.RetryAfter = d
	return e
}

// AsFatal returns a copy marked fatal.
func (e Error) AsFatal() Error {
	e.Fatal = true
	return e
}

// Classify maps an arbitrary error onto the taxonomy.  Errors that already
// carry a classification keep it.
func Classify(err error) Error {
	if err == nil {
		return NewError(KindUnknown, "")
	}
	var se Error
	if errors.As(err, &se) {
		return se
	}
	var sep *Error
	if errors.As(err, &sep) && sep != nil {
		return *sep
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(KindTimeout, err.Error())
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return NewError(KindTimeout, err.Error())
		}
		return NewError(KindNetwork, err.Error())
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return NewError(KindParsing, err.Error())
	}
	return NewError(KindUnknown, err.Error())
}
