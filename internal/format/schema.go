package format

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON Schema of the json payload
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	s := r.Reflect(&Envelope{})
	s.Title = "doccontext snippets"
	return json.MarshalIndent(s, "", "  ")
}
