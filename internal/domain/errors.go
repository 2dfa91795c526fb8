package domain

import "errors"

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrEngineUnavailable signals that the index engine could not be reached.
	ErrEngineUnavailable = errors.New("search engine unavailable")
	// ErrInvalidTile signals a malformed tile key.
	ErrInvalidTile = errors.New("invalid tile key")
	// ErrInvalidSpan signals an inverted or out-of-bounds chronological span.
	ErrInvalidSpan = errors.New("invalid chronological span")
)
