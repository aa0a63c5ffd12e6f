package types

import (
	"math"
	"unicode/utf8"
)

// Snippet is a single curated documentation example. Snippets are owned by
// the snippet store and treated as read-only everywhere else.
type Snippet struct {
	ID           string // Stable within a library, usually the source anchor
	Title        string
	Description  string
	Language     string
	Code         string
	PageTitle    string
	SourceRef    string
	QualityScore float64 // Fixed at ingestion, [0, 1]
	Ordinal      int     // Position in corpus order
}

// Validate checks the invariants a snippet must satisfy before ingestion
func (s *Snippet) Validate() error {
	if s.ID == "" {
		return ErrEmptySnippetID
	}
	if s.Code == "" {
		return ErrEmptySnippetCode
	}
	if math.IsNaN(s.QualityScore) || s.QualityScore < 0 || s.QualityScore > 1 {
		return ErrInvalidQualityScore
	}
	return nil
}

// Quality returns the quality score clamped into [0, 1]
func (s *Snippet) Quality() float64 {
	return clamp01(s.QualityScore)
}

// EstimatedTokens approximates the token cost of rendering the snippet
// (about four characters per token).
func (s *Snippet) EstimatedTokens() int {
	runes := utf8.RuneCountInString(s.Title) +
		utf8.RuneCountInString(s.Description) +
		utf8.RuneCountInString(s.Code)
	return (runes + 3) / 4
}

// ScoredSnippet pairs a snippet with the scores computed for one query
type ScoredSnippet struct {
	Snippet
	Relevance float64 // Semantic relevance to the topic, [0, 1]
	Final     float64 // Blended ranking score, [0, 1]
}

func clamp01(v float64) float64 {
	switch {
	case v < 0 || math.IsNaN(v):
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
