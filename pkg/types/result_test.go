package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueryNormalized(t *testing.T) {
	q := Query{Topic: "  routing \n", Limit: 7, Tokens: -5}.Normalized()
	assert.Equal(t, "routing", q.Topic)
	assert.Equal(t, 7, q.Limit)
	assert.Equal(t, 0, q.Tokens)

	assert.False(t, Query{Topic: "   "}.HasTopic())
	assert.True(t, Query{Topic: "hooks"}.HasTopic())
}

func TestResultSetNil(t *testing.T) {
	var rs *ResultSet
	assert.Equal(t, 0, rs.Len())
	assert.Nil(t, rs.IDs())

	rs = &ResultSet{Snippets: []ScoredSnippet{
		{Snippet: Snippet{ID: "b"}},
		{Snippet: Snippet{ID: "a"}},
	}}
	assert.Equal(t, 2, rs.Len())
	assert.Equal(t, []string{"b", "a"}, rs.IDs())
}
