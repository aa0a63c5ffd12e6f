// Package types provides the shared domain types for DocContext.
//
// # Library Identifiers
//
// A LibraryID names an indexed library in the canonical "owner/name" form,
// optionally followed by a version suffix:
//
//	id, err := types.ParseLibraryID("/vercel/next.js/v14.3.0")
//	// id.Owner == "vercel", id.Name == "next.js", id.Version == "v14.3.0"
//
// Malformed identifiers fail with ErrInvalidLibraryID before any lookup.
//
// # Snippets and Result Sets
//
// Snippet is a curated documentation example carrying a quality score fixed
// at ingestion. Ranking pairs each snippet with a query-specific relevance and
// final score in a ScoredSnippet; the ordered collection for one
// (library, query) is a ResultSet:
//
//	for _, s := range rs.Snippets {
//	    fmt.Printf("%.3f %s\n", s.Final, s.Title)
//	}
//
// Scores are normalized to [0, 1], with higher values indicating better matches.
//
// # Errors
//
// ErrInvalidLibraryID, ErrInvalidFormat, ErrNotFound and
// ErrUpstreamUnavailable form the retrieval error taxonomy:
//
//	if errors.Is(err, types.ErrNotFound) {
//	    // library is well-formed but not indexed
//	}
package types
