package session

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
	"github.com/corebridge/agentcore/tool"
)

func TestSession_NewToolRegistry_ClearedOnClose(t *testing.T) {
	s := New()
	reg := s.NewToolRegistry()
	require.NoError(t, reg.Register(tool.Tool{
		Name:    "noop",
		Handler: func(ctx context.Context, args map[string]any) (any, error) { return "", nil },
	}))
	assert.Equal(t, 1, reg.Count())

	require.NoError(t, s.Close())
	assert.Equal(t, 0, reg.Count())
}

func TestSession_NewAgent_UsableBeforeClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	s := New()
	cfg := config.LLMConfig{Provider: "openai", Model: "m", APIKey: "k", APIBase: srv.URL}
	client, err := llm.New(cfg, pool.New(pool.Config{Capacity: 1}), nil)
	require.NoError(t, err)

	tools := s.NewToolRegistry()
	a, err := s.NewAgent("tester", "be helpful", client, tools, 1)
	require.NoError(t, err)
	require.NotNil(t, a)

	require.NoError(t, s.Close())
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s := New()
	s.NewToolRegistry()
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
