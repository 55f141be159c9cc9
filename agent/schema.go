package agent

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/hupe1980/agentcatalog/internal/util"
	"github.com/invopop/jsonschema"
)

var argsReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
	ExpandedStruct:            true,
}

// SchemaFor reflects a JSON Schema object for the argument struct v. Field
// descriptions and enums come from `jsonschema` tags; fields without
// `omitempty` are required.
func SchemaFor(v any) (map[string]any, error) {
	s := argsReflector.Reflect(v)
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("agent: encode schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("agent: decode schema: %w", err)
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}

// MustSchemaFor is SchemaFor for package-level agent definitions.
func MustSchemaFor(v any) map[string]any {
	s, err := SchemaFor(v)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks args against a parameter schema: required fields, JSON
// types and enums. Unknown arguments are allowed.
func Validate(args map[string]any, schema map[string]any) error {
	return util.ValidateParameters(args, schema)
}
