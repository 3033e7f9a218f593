package bracket

import (
	"encore.dev/beta/errs"

	"encore.app/upstream"
)

// classifyUpstreamError maps an upstream.Error (or any other error) to the
// error-kind taxonomy and HTTP status class of spec.md §4.5/§7, using
// encore.dev/beta/errs so Encore's generated gateway sets the matching HTTP
// status automatically:
//   not-found            -> errs.NotFound    (404, not cached)
//   rate-limited          -> errs.Unavailable (503-class, not cached)
//   upstream-unavailable  -> errs.Unavailable (503-class, not cached)
//   fatal-configuration   -> errs.Internal    (500, misconfiguration message, not cached)
//   anything else (network, bug, or unclassified) -> errs.Internal (500)
// The returned message never includes the bearer credential, since
// upstream.Error.Message is built without it (spec.md §9).
func classifyUpstreamError(err error) error {
	uerr, ok := err.(*upstream.Error)
	if !ok {
		return &errs.Error{Code: errs.Internal, Message: "unexpected error"}
	}

	switch uerr.Kind {
	case upstream.KindNotFound:
		return &errs.Error{Code: errs.NotFound, Message: uerr.Message}
	case upstream.KindRateLimited:
		return &errs.Error{Code: errs.Unavailable, Message: "upstream rate limit exceeded, try again shortly"}
	case upstream.KindUpstreamUnavailable:
		return &errs.Error{Code: errs.Unavailable, Message: "upstream temporarily unavailable"}
	case upstream.KindFatalConfiguration:
		return &errs.Error{Code: errs.Internal, Message: "service misconfigured: check upstream credentials"}
	default:
		return &errs.Error{Code: errs.Internal, Message: "internal error"}
	}
}

func invalidRequest(message string) error {
	return &errs.Error{Code: errs.InvalidArgument, Message: message}
}

// rateLimitedLocally is the BFF's own inbound rate limit (recovered feature
// #2), distinct from classifyUpstreamError's upstream.KindRateLimited.
func rateLimitedLocally(message string) error {
	return &errs.Error{Code: errs.ResourceExhausted, Message: message}
}
