package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLibraryID(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    LibraryID
		wantErr bool
	}{
		{name: "owner and name", raw: "fastapi/fastapi", want: LibraryID{Owner: "fastapi", Name: "fastapi"}},
		{name: "leading slash", raw: "/vercel/next.js", want: LibraryID{Owner: "vercel", Name: "next.js"}},
		{name: "version suffix", raw: "vercel/next.js/v14.3.0", want: LibraryID{Owner: "vercel", Name: "next.js", Version: "v14.3.0"}},
		{name: "multi segment suffix", raw: "not/a/real/lib", want: LibraryID{Owner: "not", Name: "a", Version: "real/lib"}},
		{name: "no slash", raw: "badid", wantErr: true},
		{name: "empty", raw: "", wantErr: true},
		{name: "only slash", raw: "/", wantErr: true},
		{name: "empty owner", raw: "//name", wantErr: true},
		{name: "empty name", raw: "owner/", wantErr: true},
		{name: "double slash", raw: "owner//name", wantErr: true},
		{name: "trailing slash after version", raw: "owner/name/v1/", wantErr: true},
		{name: "whitespace", raw: "owner/na me", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLibraryID(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidLibraryID))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLibraryIDString(t *testing.T) {
	id := MustParseLibraryID("/vercel/next.js/v14.3.0")
	assert.Equal(t, "vercel/next.js/v14.3.0", id.String())
	assert.Equal(t, "vercel/next.js", id.Base())
	assert.Equal(t, "vercel/next.js", id.WithVersion("").String())
	assert.False(t, id.IsZero())
	assert.True(t, LibraryID{}.IsZero())
}

func TestParseFormat(t *testing.T) {
	for _, raw := range []string{"", "json", "JSON", " txt "} {
		_, err := ParseFormat(raw)
		assert.NoError(t, err, raw)
	}

	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, f)

	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrInvalidFormat)
}

func TestSnippetValidateLibraryFixture(t *testing.T) {
	valid := Snippet{ID: "a#1", Code: "print(1)", QualityScore: 0.5}
	assert.NoError(t, valid.Validate())

	noID := valid
	noID.ID = ""
	assert.ErrorIs(t, noID.Validate(), ErrEmptySnippetID)

	noCode := valid
	noCode.Code = ""
	assert.ErrorIs(t, noCode.Validate(), ErrEmptySnippetCode)

	badQuality := valid
	badQuality.QualityScore = 1.5
	assert.ErrorIs(t, badQuality.Validate(), ErrInvalidQualityScore)
	assert.Equal(t, 1.0, badQuality.Quality())
}

func TestEstimatedTokens(t *testing.T) {
	s := Snippet{Title: "abcd", Description: "efgh", Code: "ijkl"}
	assert.Equal(t, 3, s.EstimatedTokens())

	empty := Snippet{}
	assert.Equal(t, 0, empty.EstimatedTokens())
}
