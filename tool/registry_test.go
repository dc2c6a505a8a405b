package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/agenterr"
)

func addSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"a": map[string]any{"type": "integer"},
			"b": map[string]any{"type": "integer"},
		},
		"required": []any{"a", "b"},
	}
}

func addTool() Tool {
	return Tool{
		Name:        "add",
		Description: "add two integers",
		Parameters:  addSchema(),
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			a := args["a"].(float64)
			b := args["b"].(float64)
			return a + b, nil
		},
	}
}

func TestRegistry_RejectsDuplicateNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(addTool()))
	err := r.Register(addTool())
	assert.Error(t, err)
}

func TestRegistry_RejectsInvalidNames(t *testing.T) {
	r := NewRegistry()
	bad := addTool()
	bad.Name = "123-bad"
	err := r.Register(bad)
	assert.Error(t, err)
}

func TestRegistry_AdvertiseIsInRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{Name: "z_tool", Handler: func(ctx context.Context, args map[string]any) (any, error) { return "", nil }}))
	require.NoError(t, r.Register(Tool{Name: "a_tool", Handler: func(ctx context.Context, args map[string]any) (any, error) { return "", nil }}))

	defs := r.Advertise()
	require.Len(t, defs, 2)
	assert.Equal(t, "z_tool", defs[0].Name)
	assert.Equal(t, "a_tool", defs[1].Name)
}

func TestRegistry_Invoke_Success(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(addTool()))

	text, isError, err := r.Invoke(context.Background(), "add", json.RawMessage(`{"a":2,"b":3}`))
	require.NoError(t, err)
	assert.False(t, isError)
	assert.Equal(t, "5", text)
}

func TestRegistry_Invoke_UnknownTool(t *testing.T) {
	r := NewRegistry()
	_, _, err := r.Invoke(context.Background(), "missing", nil)
	assert.True(t, agenterr.Is(err, agenterr.UnknownTool))
}

func TestRegistry_Invoke_MissingRequiredParam(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(addTool()))

	_, _, err := r.Invoke(context.Background(), "add", json.RawMessage(`{"a":2}`))
	assert.True(t, agenterr.Is(err, agenterr.SchemaMismatch))
}

func TestRegistry_Invoke_TypeMismatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(addTool()))

	_, _, err := r.Invoke(context.Background(), "add", json.RawMessage(`{"a":"two","b":3}`))
	assert.True(t, agenterr.Is(err, agenterr.SchemaMismatch))
}

func TestRegistry_Invoke_HandlerErrorIsContainedNotPropagated(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(Tool{
		Name: "fails",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, fmt.Errorf("disk full")
		},
	}))

	text, isError, err := r.Invoke(context.Background(), "fails", nil)
	require.NoError(t, err)
	assert.True(t, isError)
	assert.Contains(t, text, "tool error")
	assert.Contains(t, text, "disk full")
}

func TestEncodeResult_NaNSignalsToolError(t *testing.T) {
	assert.Equal(t, "tool error", encodeResult(math.NaN()))
	assert.Equal(t, "3.5", encodeResult(3.5))
	assert.Equal(t, "3", encodeResult(float64(3)))
}
