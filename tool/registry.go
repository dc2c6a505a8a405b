package tool

import (
	"context"
	"encoding/json"
	"math"
	"regexp"
	"strconv"

	"github.com/corebridge/agentcore/agenterr"
	"github.com/corebridge/agentcore/provider"
	"github.com/corebridge/agentcore/registry"
)

var nameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Registry holds a set of named Tools, enforcing name uniqueness and the
// name-character restriction of spec §4.4.
type Registry struct {
	*registry.BaseRegistry[Tool]
}

// NewRegistry constructs an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Tool]()}
}

// Register adds t to the registry. It rejects an invalid name, a missing
// handler, and a name already registered.
func (r *Registry) Register(t Tool) error {
	if !nameRE.MatchString(t.Name) {
		return agenterr.New(agenterr.InvalidArg, "tool name %q does not match ^[A-Za-z_][A-Za-z0-9_]*$", t.Name)
	}
	if t.Handler == nil {
		return agenterr.New(agenterr.InvalidArg, "tool %q has no handler", t.Name)
	}
	if err := r.BaseRegistry.Register(t.Name, t); err != nil {
		return agenterr.Wrap(agenterr.InvalidArg, err, "register tool %q", t.Name)
	}
	return nil
}

// Advertise returns the tool definitions to embed in a ChatRequest, in
// deterministic registration order (spec §4.4).
func (r *Registry) Advertise() []provider.ToolDefinition {
	tools := r.List()
	out := make([]provider.ToolDefinition, 0, len(tools))
	for _, t := range tools {
		out = append(out, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return out
}

// Invoke decodes rawArgs, validates it against the named tool's parameter
// schema, and calls its handler. It returns the encoded textual result and
// whether the result represents a handler-raised error (to be marked
// tool_result_error on replay), or a registry-level error
// (UNKNOWN_TOOL/SCHEMA_MISMATCH) if the call could not be dispatched at
// all (spec §4.4).
func (r *Registry) Invoke(ctx context.Context, name string, rawArgs json.RawMessage) (text string, isError bool, err error) {
	t, ok := r.Get(name)
	if !ok {
		return "", false, agenterr.New(agenterr.UnknownTool, "no tool registered with name %q", name)
	}

	args := map[string]any{}
	if len(rawArgs) > 0 {
		if jsonErr := json.Unmarshal(rawArgs, &args); jsonErr != nil {
			return "", false, agenterr.Wrap(agenterr.SchemaMismatch, jsonErr, "decode arguments for tool %q", name)
		}
	}
	if schemaErr := validateArgs(t.Parameters, args); schemaErr != nil {
		return "", false, schemaErr
	}

	result, handlerErr := t.Handler(ctx, args)
	if handlerErr != nil {
		return "tool error: " + handlerErr.Error(), true, nil
	}

	return encodeResult(result), false, nil
}

// encodeResult stringifies a handler's return value. Numeric values are
// formatted in a stable, locale-independent decimal form; a NaN float
// signals "tool error" rather than a numeric string (spec §4.4).
func encodeResult(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if math.IsNaN(x) {
			return "tool error"
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		f := float64(x)
		if math.IsNaN(f) {
			return "tool error"
		}
		return strconv.FormatFloat(f, 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case nil:
		return ""
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return "tool error"
		}
		return string(b)
	}
}
