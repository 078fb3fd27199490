// Package strategy exposes the public surface for authoring strategy
// definitions: the JSON schema used by editors to validate strategy YAML.
package strategy

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/tradelayout/tickgraph/internal/types"
)

// ToJSONSchema converts a struct to a JSON schema string.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// DefinitionSchemaJSON returns the JSON schema for strategy definition
// files.
func DefinitionSchemaJSON() (string, error) {
	return ToJSONSchema(types.StrategyDefinition{})
}
