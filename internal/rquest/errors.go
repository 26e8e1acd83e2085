package rquest

import "errors"

var (
	// ErrMalformedQuery marks a query document that cannot be turned into a query.
	ErrMalformedQuery = errors.New("malformed query")
	// ErrUnsupportedQuery marks a well-formed query asking for something the engine does not do.
	// It must reach the caller rather than become an error result.
	ErrUnsupportedQuery = errors.New("unsupported query")
)
