package corpus

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/dshills/doccontext-mcp/internal/storage"
	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Document is one library version as written in a corpus file. A file may
// hold several documents separated by "---".
type Document struct {
	ID          string    `yaml:"id"`                // owner/name, optionally /owner/name
	Version     string    `yaml:"version,omitempty"` // Overrides a version suffix in ID
	Title       string    `yaml:"title"`
	Description string    `yaml:"description"`
	TrustScore  float64   `yaml:"trustScore"` // 0-10
	Stars       int       `yaml:"stars"`
	Snippets    []Snippet `yaml:"snippets"`
	source      string
}

// Snippet is the on-disk form of a documentation snippet
type Snippet struct {
	ID          string     `yaml:"id,omitempty"` // Defaults to codeId
	CodeID      string     `yaml:"codeId"`       // Source anchor URL
	Title       string     `yaml:"codeTitle"`
	Description string     `yaml:"codeDescription"`
	Language    string     `yaml:"codeLanguage"`
	PageTitle   string     `yaml:"pageTitle"`
	Quality     *float64   `yaml:"quality,omitempty"`
	Code        string     `yaml:"code,omitempty"`
	CodeList    []CodeItem `yaml:"codeList,omitempty"`
}

// CodeItem is one code block of a snippet
type CodeItem struct {
	Language string `yaml:"language"`
	Code     string `yaml:"code"`
}

// DefaultQuality is assigned to snippets that carry no quality score
const DefaultQuality = 0.5

// Decode reads every document in r
func Decode(r io.Reader, source string) ([]*Document, error) {
	dec := yaml.NewDecoder(r)
	var docs []*Document
	for i := 0; ; i++ {
		var doc Document
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: document %d: %w", source, i, err)
		}
		if doc.ID == "" && len(doc.Snippets) == 0 {
			continue
		}
		doc.source = source
		docs = append(docs, &doc)
	}
	return docs, nil
}

// LibraryID returns the identifier of the document's library version
func (d *Document) LibraryID() (types.LibraryID, error) {
	id, err := types.ParseLibraryID(d.ID)
	if err != nil {
		return types.LibraryID{}, fmt.Errorf("%s: %w", d.source, err)
	}
	if v := strings.TrimSpace(d.Version); v != "" {
		id = id.WithVersion(v)
	}
	return id, nil
}

// Library converts the document header into a storage row
func (d *Document) Library() (*storage.Library, error) {
	id, err := d.LibraryID()
	if err != nil {
		return nil, err
	}
	title := d.Title
	if title == "" {
		title = id.Name
	}
	return &storage.Library{
		Owner:       id.Owner,
		Name:        id.Name,
		Version:     id.Version,
		Title:       title,
		Description: d.Description,
		TrustScore:  d.TrustScore,
		Stars:       d.Stars,
	}, nil
}

// ToSnippets converts and validates the document's snippets in file order.
// Duplicate identifiers keep the first occurrence.
func (d *Document) ToSnippets() ([]types.Snippet, error) {
	out := make([]types.Snippet, 0, len(d.Snippets))
	seen := make(map[string]bool, len(d.Snippets))
	for i, s := range d.Snippets {
		sn := s.toSnippet()
		if err := sn.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %s snippet %d: %w", d.source, d.ID, i, err)
		}
		if seen[sn.ID] {
			continue
		}
		seen[sn.ID] = true
		out = append(out, sn)
	}
	return out, nil
}

func (s Snippet) toSnippet() types.Snippet {
	id := s.ID
	if id == "" {
		id = s.CodeID
	}
	quality := DefaultQuality
	if s.Quality != nil {
		quality = *s.Quality
	}

	language := s.Language
	code := s.Code
	if code == "" && len(s.CodeList) > 0 {
		blocks := make([]string, 0, len(s.CodeList))
		for _, c := range s.CodeList {
			if strings.TrimSpace(c.Code) == "" {
				continue
			}
			blocks = append(blocks, strings.TrimRight(c.Code, "\n"))
			if language == "" {
				language = c.Language
			}
		}
		code = strings.Join(blocks, "\n\n")
	}

	return types.Snippet{
		ID:           id,
		Title:        s.Title,
		Description:  s.Description,
		Language:     language,
		Code:         strings.TrimRight(code, "\n"),
		PageTitle:    s.PageTitle,
		SourceRef:    s.CodeID,
		QualityScore: quality,
	}
}
