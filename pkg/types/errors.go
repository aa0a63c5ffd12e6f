package types

import "errors"

// Retrieval errors. Callers match them with errors.Is; every layer wraps
// them with context using %w.
var (
	// ErrInvalidLibraryID is returned for identifiers that are not <owner>/<name>[/<version>]
	ErrInvalidLibraryID = errors.New("invalid library id")
	// ErrNotFound is returned when a well-formed library is absent from the corpus
	ErrNotFound = errors.New("library not found")
	// ErrUpstreamUnavailable wraps snippet store and scorer failures
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidFormat is returned for response formats other than json and txt
	ErrInvalidFormat = errors.New("invalid format")
	// ErrEmptyQuery is returned by library search for blank queries
	ErrEmptyQuery = errors.New("query cannot be empty")
)

// Snippet validation errors
var (
	ErrEmptySnippetID        = errors.New("snippet id cannot be empty")
	ErrEmptySnippetCode      = errors.New("snippet code cannot be empty")
	ErrInvalidQualityScore   = errors.New("quality score must be between 0 and 1")
	ErrInvalidRelevanceScore = errors.New("relevance score must be between 0 and 1")
)
