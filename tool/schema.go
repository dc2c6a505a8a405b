package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/corebridge/agentcore/agenterr"
)

// SchemaOf generates a JSON-schema parameter description from a Go struct
// type, so tool authors write a plain argument struct instead of
// hand-rolling the schema map (spec §4.4's "JSON-schema object describing
// parameters"). Struct field tags follow encoding/json and jsonschema
// conventions (`jsonschema:"required,description=..."`).
func SchemaOf[T any]() map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	var zero T
	schema := reflector.Reflect(zero)

	raw, _ := schema.MarshalJSON()
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

// validateArgs checks decoded args against a simplified parameter schema
// restricted to object/{string,integer,number,boolean} per spec §4.4,
// reporting SCHEMA_MISMATCH for a missing required parameter or a type
// mismatch.
func validateArgs(schema map[string]any, args map[string]any) error {
	if schema == nil {
		return nil
	}
	required, _ := schema["required"].([]any)
	for _, r := range required {
		name, _ := r.(string)
		if name == "" {
			continue
		}
		if _, ok := args[name]; !ok {
			return agenterr.New(agenterr.SchemaMismatch, "missing required parameter %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, value := range args {
		propRaw, ok := properties[name]
		if !ok {
			continue
		}
		prop, _ := propRaw.(map[string]any)
		wantType, _ := prop["type"].(string)
		if wantType == "" {
			continue
		}
		if !typeMatches(wantType, value) {
			return agenterr.New(agenterr.SchemaMismatch, "parameter %q: expected %s, got %T", name, wantType, value)
		}
	}
	return nil
}

func typeMatches(want string, value any) bool {
	switch want {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "integer":
		switch n := value.(type) {
		case float64:
			return n == float64(int64(n))
		case int, int64:
			return true
		default:
			return false
		}
	case "number":
		switch value.(type) {
		case float64, int, int64:
			return true
		default:
			return false
		}
	default:
		return true
	}
}

