package main

import (
	"errors"
	"net/http"
)

// error taxonomy.  client input problems surface verbatim with a 4xx status;
// empty results map to 404; backend trouble maps to 5xx equivalents.  nothing
// in the engine is fatal to the process.

var (
	errUnsupportedNode  = errors.New("unsupported node")
	errInvalidFacet     = errors.New("invalid facet")
	errUnsupportedOrder = errors.New("unsupported order")
	errInvalidRequest   = errors.New("invalid request")

	errNotFound = errors.New("no matching records")

	errUnauthorized        = errors.New("access denied by metadata service")
	errUpstreamUnavailable = errors.New("metadata service unavailable")
)

func isClientError(err error) bool {
	return errors.Is(err, errUnsupportedNode) ||
		errors.Is(err, errInvalidFacet) ||
		errors.Is(err, errUnsupportedOrder) ||
		errors.Is(err, errInvalidRequest)
}

func statusForError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case isClientError(err):
		return http.StatusBadRequest

	case errors.Is(err, errNotFound):
		return http.StatusNotFound

	case errors.Is(err, errUnauthorized):
		return http.StatusForbidden

	case errors.Is(err, errUpstreamUnavailable):
		return http.StatusServiceUnavailable

	default:
		return http.StatusInternalServerError
	}
}
