package geocode

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/carpark-cli/internal/resilience"
)

// ErrorKind is the user-facing class of a geocoding failure.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindNetwork
	KindTimeout
	KindNotFound
	KindRateLimited
	KindInvalidQuery
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindNotFound:
		return "not_found"
	case KindRateLimited:
		return "rate_limited"
	case KindInvalidQuery:
		return "invalid_query"
	default:
		return "unknown"
	}
}

// ErrNotFound is returned when the service has no usable result.
var ErrNotFound = eris.New("geocode: no matching location")

// Error carries the kind decided at the call site.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return "geocode: " + e.Kind.String()
	}
	return "geocode: " + e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Classify maps err to an ErrorKind. Typed errors are checked first; opaque
// errors fall back to matching their message.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	if errors.Is(err, ErrNotFound) {
		return KindNotFound
	}
	var te *resilience.TransientError
	if errors.As(err, &te) && te.StatusCode == http.StatusTooManyRequests {
		return KindRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) || resilience.IsTimeout(err) {
		return KindTimeout
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "429", "rate limit", "too many requests"):
		return KindRateLimited
	case containsAny(msg, "timeout", "timed out", "deadline"):
		return KindTimeout
	case containsAny(msg, "not found", "no results", "no matching"):
		return KindNotFound
	case containsAny(msg, "network", "connection", "dial", "no such host", "unreachable", "eof"):
		return KindNetwork
	case resilience.IsTransient(err):
		return KindNetwork
	}
	return KindUnknown
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// UserMessage returns the text shown for a failure of the given kind.
func UserMessage(kind ErrorKind) string {
	switch kind {
	case KindNone:
		return ""
	case KindNetwork:
		return "Unable to reach the location service. Check your connection and try again."
	case KindTimeout:
		return "The location search took too long. Please try again."
	case KindNotFound:
		return "No matching location found. Try a different address or postal code."
	case KindRateLimited:
		return "Too many searches. Please wait a moment and try again."
	case KindInvalidQuery:
		return "Enter an address, place name or 6-digit postal code."
	default:
		return "Something went wrong while searching. Please try again."
	}
}
