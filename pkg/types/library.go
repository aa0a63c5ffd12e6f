package types

import (
	"fmt"
	"strings"
	"unicode"
)

// LibraryID is the canonical identifier of an indexed library.
//
// Accepted forms are "owner/name", "/owner/name" and "owner/name/<version>",
// where every segment after the name is part of the version suffix.
type LibraryID struct {
	Owner   string
	Name    string
	Version string // Optional, may itself contain slashes
}

// ParseLibraryID validates and parses a library identifier.
func ParseLibraryID(raw string) (LibraryID, error) {
	s := strings.TrimPrefix(raw, "/")
	if s == "" {
		return LibraryID{}, fmt.Errorf("%w: empty identifier", ErrInvalidLibraryID)
	}
	if strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return LibraryID{}, fmt.Errorf("%w: %q contains whitespace", ErrInvalidLibraryID, raw)
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return LibraryID{}, fmt.Errorf("%w: %q must have the form <owner>/<name>", ErrInvalidLibraryID, raw)
	}
	for _, p := range parts {
		if p == "" {
			return LibraryID{}, fmt.Errorf("%w: %q has an empty path segment", ErrInvalidLibraryID, raw)
		}
	}

	return LibraryID{
		Owner:   parts[0],
		Name:    parts[1],
		Version: strings.Join(parts[2:], "/"),
	}, nil
}

// MustParseLibraryID is like ParseLibraryID but panics on error. Intended for tests and fixtures.
func MustParseLibraryID(raw string) LibraryID {
	id, err := ParseLibraryID(raw)
	if err != nil {
		panic(err)
	}
	return id
}

// Base returns the versionless "owner/name" form
func (id LibraryID) Base() string {
	return id.Owner + "/" + id.Name
}

// String returns the canonical "owner/name[/version]" form
func (id LibraryID) String() string {
	if id.Version == "" {
		return id.Base()
	}
	return id.Base() + "/" + id.Version
}

// IsZero reports whether the identifier is unset
func (id LibraryID) IsZero() bool {
	return id.Owner == "" && id.Name == ""
}

// WithVersion returns a copy pinned to the given version
func (id LibraryID) WithVersion(version string) LibraryID {
	id.Version = version
	return id
}
