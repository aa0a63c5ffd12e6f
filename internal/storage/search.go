package storage

import (
	"strings"
	"unicode"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// DefaultSearchLimit bounds catalog lookups when the caller passes no limit
const DefaultSearchLimit = 10

// buildFTSQuery turns free text into an FTS5 expression. Each token becomes
// a quoted prefix term and terms are OR-ed so partial names still match.
func buildFTSQuery(query string) string {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	terms := make([]string, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		tok = strings.ToLower(tok)
		if seen[tok] {
			continue
		}
		seen[tok] = true
		terms = append(terms, `"`+tok+`"*`)
	}
	return strings.Join(terms, " OR ")
}

// collapseMatches groups library versions by base identifier, keeping the
// order of the first hit per library.
func collapseMatches(libs []*Library, limit int) []types.LibraryMatch {
	var matches []types.LibraryMatch
	index := make(map[string]int)
	versions := make(map[string][]string)

	for _, lib := range libs {
		base := lib.LibraryID().Base()
		if lib.Version != "" {
			versions[base] = append(versions[base], lib.Version)
		}
		if i, ok := index[base]; ok {
			m := &matches[i]
			m.TotalSnippets += lib.TotalSnippets
			if lib.Stars > m.Stars {
				m.Stars = lib.Stars
			}
			if q := lib.QualityScore(); q > m.QualityScore {
				m.QualityScore = q
			}
			continue
		}
		if len(matches) >= limit {
			continue
		}
		index[base] = len(matches)
		matches = append(matches, types.LibraryMatch{
			ID:            base,
			Title:         lib.Title,
			Description:   lib.Description,
			QualityScore:  lib.QualityScore(),
			Stars:         lib.Stars,
			TotalSnippets: lib.TotalSnippets,
		})
	}

	for i := range matches {
		matches[i].Versions = sortVersions(versions[matches[i].ID])
	}
	return matches
}
