package agent

import (
	"bytes"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidateOutput validates raw against schema (a JSON Schema document) and
// returns a *Error of kind ErrorKindParse describing the first violation,
// or nil when raw conforms. This is the optional structured-output
// validation hook described in SPEC_FULL.md §4.1; callers only invoke it
// when an agent's SchemaProvider.OutputSchema() returned ok=true.
func ValidateOutput(schema json.RawMessage, raw json.RawMessage) error {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("output.json", bytes.NewReader(schema)); err != nil {
		return Wrap(ErrorKindParse, err, "invalid output schema")
	}
	sch, err := compiler.Compile("output.json")
	if err != nil {
		return Wrap(ErrorKindParse, err, "invalid output schema")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Wrap(ErrorKindParse, err, "agent output is not valid JSON")
	}
	if err := sch.Validate(doc); err != nil {
		return Wrap(ErrorKindParse, err, "agent output does not conform to declared schema")
	}
	return nil
}
