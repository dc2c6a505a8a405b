// Package tool implements the tool registry and invocation path of spec
// §4.4: JSON-schema-described tools, argument decoding, result encoding,
// and the SCHEMA_MISMATCH/UNKNOWN_TOOL error semantics.
package tool

import "context"

// Handler executes a tool given its decoded JSON arguments. It returns
// either a string (used verbatim) or a numeric value (encoded via a
// stable, locale-independent decimal form by the registry), plus an error
// for handler-raised failures.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a single named, schema-described, callable capability (spec §3).
type Tool struct {
	Name        string
	Description string
	// Parameters is a JSON Schema object: {"type":"object","properties":
	// {...}, "required": [...]}, restricted per spec §4.4 to parameter
	// type ∈ {string, integer, number, boolean}.
	Parameters map[string]any
	Handler    Handler
}
