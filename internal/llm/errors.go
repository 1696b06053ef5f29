package llm

import (
	"errors"
	"fmt"
)

// Kind classifies a failed chat call
type Kind int

const (
	KindUnknown Kind = iota
	KindInvalidURL
	KindTransport
	KindUnauthorized
	KindRateLimited
	KindHTTP
	KindDecoding
	KindAPI
	KindEncoding
)

func (k Kind) String() string {
	switch k {
	case KindInvalidURL:
		return "invalid_url"
	case KindTransport:
		return "transport"
	case KindUnauthorized:
		return "unauthorized"
	case KindRateLimited:
		return "rate_limited"
	case KindHTTP:
		return "http"
	case KindDecoding:
		return "decoding"
	case KindAPI:
		return "api"
	case KindEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// Error is returned by every failing Client call.
//
// StatusCode is set for HTTP-level kinds. Code and Message carry what the
// provider reported, when it reported anything. Err is the underlying
// cause for transport, encoding, decoding and URL failures.
type Error struct {
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Err        error
}

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrInvalidURL   = &Error{Kind: KindInvalidURL}
	ErrTransport    = &Error{Kind: KindTransport}
	ErrUnauthorized = &Error{Kind: KindUnauthorized}
	ErrRateLimited  = &Error{Kind: KindRateLimited}
	ErrHTTP         = &Error{Kind: KindHTTP}
	ErrDecoding     = &Error{Kind: KindDecoding}
	ErrAPI          = &Error{Kind: KindAPI}
	ErrEncoding     = &Error{Kind: KindEncoding}
)

func (e *Error) Error() string {
	switch e.Kind {
	case KindInvalidURL:
		return fmt.Sprintf("invalid URL: %v", e.Err)
	case KindTransport:
		return fmt.Sprintf("request failed: %v", e.Err)
	case KindUnauthorized:
		return "unauthorized: API key invalid or expired"
	case KindRateLimited:
		return "rate limit exceeded"
	case KindHTTP:
		if e.Message != "" {
			return fmt.Sprintf("HTTP error (%d): %s", e.StatusCode, e.Message)
		}
		return fmt.Sprintf("HTTP error (%d)", e.StatusCode)
	case KindDecoding:
		if e.Err != nil {
			return fmt.Sprintf("failed to decode response: %v", e.Err)
		}
		return fmt.Sprintf("failed to decode response: %s", e.Message)
	case KindAPI:
		return fmt.Sprintf("API error (%s): %s", e.Code, e.Message)
	case KindEncoding:
		return fmt.Sprintf("failed to encode request: %v", e.Err)
	default:
		return "unknown chat error"
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func newError(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}
