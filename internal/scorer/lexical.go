package scorer

import (
	"context"
	"strings"
	"unicode"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Field weights used by Lexical
const (
	TitleWeight       = 3.0
	DescriptionWeight = 2.0
	CodeWeight        = 1.0

	// PhraseBonus is added when the whole multi-word topic appears verbatim
	PhraseBonus = 0.1
)

var stopWords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "for": true, "from": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true,
	"use": true, "using": true, "what": true, "with": true,
}

// Lexical scores by weighted term coverage: the share of distinct topic terms
// found in the title (x3), description (x2) and code (x1), normalized by the
// best possible weight.
type Lexical struct{}

// NewLexical returns a lexical scorer
func NewLexical() *Lexical {
	return &Lexical{}
}

// Name returns ModeLexical
func (l *Lexical) Name() string { return ModeLexical }

// Score implements Scorer
func (l *Lexical) Score(_ context.Context, topic string, snippet *types.Snippet) (float64, error) {
	terms := topicTerms(topic)
	if len(terms) == 0 {
		return 1, nil
	}

	title := tokenSet(snippet.Title + " " + snippet.PageTitle)
	desc := tokenSet(snippet.Description)
	code := tokenSet(snippet.Code)

	var got float64
	for _, t := range terms {
		if title[t] {
			got += TitleWeight
		}
		if desc[t] {
			got += DescriptionWeight
		}
		if code[t] {
			got += CodeWeight
		}
	}
	score := got / (float64(len(terms)) * (TitleWeight + DescriptionWeight + CodeWeight))

	if len(terms) > 1 && got > 0 {
		phrase := strings.Join(tokenize(topic), " ")
		body := strings.Join(tokenize(snippetText(snippet)), " ")
		if strings.Contains(body, phrase) {
			score += PhraseBonus
		}
	}

	return clamp(score), nil
}

// tokenize lowercases text and splits it into alphanumeric runs
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// topicTerms returns the distinct non-stop-word terms of a topic in order.
// A topic made only of stop words keeps them so it still discriminates.
func topicTerms(topic string) []string {
	tokens := tokenize(topic)
	seen := make(map[string]bool, len(tokens))
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if stopWords[t] || seen[t] {
			continue
		}
		seen[t] = true
		terms = append(terms, t)
	}
	if len(terms) > 0 {
		return terms
	}
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			terms = append(terms, t)
		}
	}
	return terms
}

func tokenSet(text string) map[string]bool {
	tokens := tokenize(text)
	set := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		set[t] = true
	}
	return set
}
