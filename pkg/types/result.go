package types

import (
	"strings"
	"time"
)

// Query holds the optional retrieval parameters for a library
type Query struct {
	Topic  string // Empty means no topic filtering
	Limit  int    // Zero means the configured default
	Tokens int    // Token budget for the rendered set, zero means unlimited
}

// Normalized returns the query with surrounding whitespace removed from the topic
func (q Query) Normalized() Query {
	q.Topic = strings.TrimSpace(q.Topic)
	if q.Tokens < 0 {
		q.Tokens = 0
	}
	return q
}

// HasTopic reports whether the query filters by topic
func (q Query) HasTopic() bool {
	return strings.TrimSpace(q.Topic) != ""
}

// ResultSet is the ranked outcome of one query against one library.
// A ResultSet is immutable once built; cached instances are shared between
// callers and must not be modified.
type ResultSet struct {
	Library     LibraryID
	Query       Query // Effective query, Limit already clamped
	Snippets    []ScoredSnippet
	Candidates  int // Number of snippets considered before filtering
	GeneratedAt time.Time
}

// Len returns the number of ranked snippets
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Snippets)
}

// IDs returns the snippet identities in ranked order
func (rs *ResultSet) IDs() []string {
	if rs == nil {
		return nil
	}
	ids := make([]string, len(rs.Snippets))
	for i, s := range rs.Snippets {
		ids[i] = s.ID
	}
	return ids
}

// LibraryMatch is a catalog entry returned by library search
type LibraryMatch struct {
	ID            string
	Title         string
	Description   string
	QualityScore  float64 // Trust score normalized to [0, 1]
	Stars         int
	TotalSnippets int
	Versions      []string
}
