// Package format renders ranked result sets. Rendering is pure: the same
// result set and format always produce the same bytes.
package format

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"text/template"

	"github.com/dshills/doccontext-mcp/pkg/types"
)

// Envelope is the json payload
type Envelope struct {
	Library  string          `json:"library" jsonschema_description:"Canonical library identifier"`
	Topic    string          `json:"topic" jsonschema_description:"Topic the snippets were ranked for, empty when unfiltered"`
	Snippets []SnippetRecord `json:"snippets" jsonschema_description:"Snippets in ranked order"`
}

// SnippetRecord is one ranked snippet in the json payload
type SnippetRecord struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Description    string  `json:"description"`
	Language       string  `json:"language,omitempty"`
	Code           string  `json:"code"`
	RelevanceScore float64 `json:"relevanceScore" jsonschema:"minimum=0,maximum=1"`
	QualityScore   float64 `json:"qualityScore" jsonschema:"minimum=0,maximum=1"`
	FinalScore     float64 `json:"finalScore" jsonschema:"minimum=0,maximum=1"`
	SourceRef      string  `json:"sourceRef"`
}

// Render produces the payload for rs in format f
func Render(rs *types.ResultSet, f types.Format) ([]byte, error) {
	if rs == nil {
		return nil, fmt.Errorf("format: nil result set")
	}
	switch f {
	case types.FormatJSON:
		return renderJSON(rs)
	case types.FormatText:
		return renderText(rs)
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidFormat, f)
	}
}

// NewEnvelope builds the json representation of rs
func NewEnvelope(rs *types.ResultSet) Envelope {
	env := Envelope{
		Library:  rs.Library.String(),
		Topic:    rs.Query.Topic,
		Snippets: make([]SnippetRecord, len(rs.Snippets)),
	}
	for i := range rs.Snippets {
		s := &rs.Snippets[i]
		env.Snippets[i] = SnippetRecord{
			ID:             s.ID,
			Title:          s.Title,
			Description:    s.Description,
			Language:       s.Language,
			Code:           s.Code,
			RelevanceScore: s.Relevance,
			QualityScore:   s.Quality(),
			FinalScore:     s.Final,
			SourceRef:      s.SourceRef,
		}
	}
	return env
}

func renderJSON(rs *types.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewEnvelope(rs)); err != nil {
		return nil, fmt.Errorf("format: encode json: %w", err)
	}
	return buf.Bytes(), nil
}

// Separator ends every snippet block in txt output
const Separator = "----------------------------------------"

var textTemplate = template.Must(template.New("snippets").Funcs(template.FuncMap{
	"fence":   fence,
	"oneline": oneLine,
}).Parse(`{{- if not .Snippets -}}
No documentation matched {{ .Library }}{{ if .Topic }} for topic "{{ .Topic }}"{{ end }}.
{{ else -}}
{{- range .Snippets -}}
### {{ oneline .Title }}
<!-- id: {{ .ID }} -->
{{ if .Description }}
{{ .Description }}
{{ end }}
{{- if .SourceRef }}
Source: {{ .SourceRef }}
{{ end }}
{{ fence .Code }}{{ .Language }}
{{ .Code }}
{{ fence .Code }}

` + Separator + `

{{ end -}}
{{- end -}}`))

// fence returns a backtick fence longer than any run inside code
func fence(code string) string {
	longest := 0
	run := 0
	for _, r := range code {
		if r == '`' {
			run++
			if run > longest {
				longest = run
			}
			continue
		}
		run = 0
	}
	n := 3
	if longest >= n {
		n = longest + 1
	}
	return strings.Repeat("`", n)
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// oneLine keeps a heading on a single line so its id marker stays adjacent
func oneLine(s string) string {
	return lineBreaks.Replace(s)
}

func renderText(rs *types.ResultSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := textTemplate.Execute(&buf, NewEnvelope(rs)); err != nil {
		return nil, fmt.Errorf("format: render text: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	textIDPattern = regexp.MustCompile(`^<!-- id: (.*) -->$`)
	fencePattern  = regexp.MustCompile("^(`{3,})[^`]*$")
)

// textSnippetIDs reads the id marker that follows each heading. Lines inside
// fenced code are skipped, so code that looks like a marker is not counted.
func textSnippetIDs(payload []byte) []string {
	ids := []string{}
	var fenceOpen, prev string
	for _, line := range strings.Split(string(payload), "\n") {
		switch {
		case fenceOpen != "":
			if line == fenceOpen {
				fenceOpen = ""
			}
		case fencePattern.MatchString(line):
			fenceOpen = fencePattern.FindStringSubmatch(line)[1]
		case strings.HasPrefix(prev, "### "):
			if m := textIDPattern.FindStringSubmatch(line); m != nil {
				ids = append(ids, m[1])
			}
		}
		prev = line
	}
	return ids
}

// SnippetIDs extracts the ordered snippet identities from a payload
func SnippetIDs(payload []byte, f types.Format) ([]string, error) {
	switch f {
	case types.FormatJSON:
		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, fmt.Errorf("format: decode json: %w", err)
		}
		ids := make([]string, len(env.Snippets))
		for i, s := range env.Snippets {
			ids[i] = s.ID
		}
		return ids, nil
	case types.FormatText:
		return textSnippetIDs(payload), nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidFormat, f)
	}
}
