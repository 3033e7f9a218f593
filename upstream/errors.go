// Package upstream implements C5: a rate-limited, retrying GraphQL client
// that exchanges domain requests for a fully materialized Tournament value.
package upstream

import "fmt"

// Kind is the upstream error taxonomy of spec.md §7, classes 2-5 (Not-found,
// Rate-limited, Upstream-unavailable, Fatal-configuration) plus Network and
// Bug, which the router maps onto HTTP status classes.
type Kind int

const (
	KindNetwork Kind = iota
	KindNotFound
	KindRateLimited
	KindUpstreamUnavailable
	KindFatalConfiguration
	KindBug
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not-found"
	case KindRateLimited:
		return "rate-limited"
	case KindUpstreamUnavailable:
		return "upstream-unavailable"
	case KindFatalConfiguration:
		return "fatal-configuration"
	case KindBug:
		return "bug"
	default:
		return "network"
	}
}

// Error carries a classified Kind alongside a message that is safe to surface
// to clients — it must never contain the bearer token (spec.md §9).
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upstream %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func NewNotFound(message string) *Error { return newError(KindNotFound, message, nil) }

func NewRateLimited(message string, err error) *Error {
	return newError(KindRateLimited, message, err)
}

func NewUpstreamUnavailable(message string, err error) *Error {
	return newError(KindUpstreamUnavailable, message, err)
}

func NewFatalConfiguration(message string) *Error {
	return newError(KindFatalConfiguration, message, nil)
}

func NewNetwork(message string, err error) *Error { return newError(KindNetwork, message, err) }

func NewBug(message string, err error) *Error { return newError(KindBug, message, err) }
