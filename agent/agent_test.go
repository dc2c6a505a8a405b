package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corebridge/agentcore/config"
	"github.com/corebridge/agentcore/llm"
	"github.com/corebridge/agentcore/pool"
	"github.com/corebridge/agentcore/provider"
	"github.com/corebridge/agentcore/tool"
)

func newTestAgent(t *testing.T, baseURL string, maxIterations int, tools *tool.Registry) *Agent {
	t.Helper()
	cfg := config.LLMConfig{Provider: "openai", Model: "test-model", APIKey: "k", APIBase: baseURL}
	client, err := llm.New(cfg, pool.New(pool.Config{Capacity: 4}), nil)
	require.NoError(t, err)
	a, err := New("tester", "be helpful", client, tools, maxIterations)
	require.NoError(t, err)
	return a
}

func addTool() tool.Tool {
	return tool.Tool{
		Name:        "add",
		Description: "add two integers",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"a": map[string]any{"type": "integer"}, "b": map[string]any{"type": "integer"}},
			"required":   []any{"a", "b"},
		},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	}
}

func TestAgent_PlainChat_S1(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	a := newTestAgent(t, srv.URL, 1, nil)
	res, err := a.Run(context.Background(), []provider.Message{provider.NewTextMessage(provider.RoleUser, "hello")})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Content)
	assert.Equal(t, 1, res.Iterations)
	assert.Equal(t, TerminalEnd, res.TerminalReason)
}

func TestAgent_OneToolRoundTrip_S2(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"add","arguments":"{\"a\":2,\"b\":3}"}}
			]},"finish_reason":"tool_calls"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"5"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tools := tool.NewRegistry()
	require.NoError(t, tools.Register(addTool()))

	a := newTestAgent(t, srv.URL, 5, tools)
	res, err := a.Run(context.Background(), []provider.Message{provider.NewTextMessage(provider.RoleUser, "add 2 and 3")})
	require.NoError(t, err)
	assert.Equal(t, "5", res.Content)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 2, calls)

	var sawToolMessage bool
	for _, m := range res.Messages {
		if m.Role == provider.RoleTool {
			sawToolMessage = true
			require.Len(t, m.Content, 1)
			assert.Equal(t, "call_1", m.Content[0].ToolResultID)
			assert.Equal(t, "5", m.Content[0].ToolResultText)
		}
	}
	assert.True(t, sawToolMessage)
}

func TestAgent_IterationCapWithOutstandingToolCalls_S3(t *testing.T) {
	calls := 0
	toolCallResp := `{"choices":[{"message":{"tool_calls":[
		{"id":"call_1","type":"function","function":{"name":"add","arguments":"{\"a\":2,\"b\":3}"}}
	]},"finish_reason":"tool_calls"}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls <= 2 {
			_, _ = w.Write([]byte(toolCallResp))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"best effort answer"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	toolCalls := 0
	tools := tool.NewRegistry()
	add := addTool()
	add.Handler = func(ctx context.Context, args map[string]any) (any, error) {
		toolCalls++
		return args["a"].(float64) + args["b"].(float64), nil
	}
	require.NoError(t, tools.Register(add))

	a := newTestAgent(t, srv.URL, 2, tools)
	res, err := a.Run(context.Background(), []provider.Message{provider.NewTextMessage(provider.RoleUser, "add 2 and 3")})
	require.NoError(t, err)
	assert.Equal(t, TerminalMaxIterations, res.TerminalReason)
	assert.Equal(t, 1, toolCalls, "the capped iteration's outstanding tool_use must not be executed")
	assert.LessOrEqual(t, calls, 3)
	assert.LessOrEqual(t, res.Iterations, 2, "iterations(result) must never exceed agent.max_iterations")
	assert.Equal(t, "best effort answer", res.Content)
}

func TestAgent_ToolErrorDoesNotAbortRun_Property7(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			_, _ = w.Write([]byte(`{"choices":[{"message":{"tool_calls":[
				{"id":"call_1","type":"function","function":{"name":"fails","arguments":"{}"}}
			]},"finish_reason":"tool_calls"}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"sorry, that failed"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tools := tool.NewRegistry()
	require.NoError(t, tools.Register(tool.Tool{
		Name: "fails",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, assertErr{}
		},
	}))

	a := newTestAgent(t, srv.URL, 3, tools)
	res, err := a.Run(context.Background(), []provider.Message{provider.NewTextMessage(provider.RoleUser, "try it")})
	require.NoError(t, err)
	assert.Equal(t, "sorry, that failed", res.Content)

	var sawErrorResult bool
	for _, m := range res.Messages {
		if m.Role == provider.RoleTool && m.Content[0].ToolResultError {
			sawErrorResult = true
			assert.Contains(t, m.Content[0].ToolResultText, "tool error")
		}
	}
	assert.True(t, sawErrorResult)
}

type assertErr struct{}

func (assertErr) Error() string { return "handler failed" }

func TestAgent_New_RejectsZeroMaxIterations(t *testing.T) {
	a := newTestAgent(t, "http://example.invalid", 5, nil)
	_, err := New("x", "y", a.LLM, nil, 0)
	assert.Error(t, err)
}
