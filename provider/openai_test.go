package provider

import (
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAI_BuildRequest(t *testing.T) {
	o := NewOpenAI()
	req, err := o.BuildRequest(RequestParams{
		BaseURL: "https://api.openai.test",
		APIKey:  "sk-test",
		Model:   "test-model",
	}, []Message{NewTextMessage(RoleUser, "hello")}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.openai.test/chat/completions", req.URL.String())
	assert.Equal(t, "Bearer sk-test", req.Header.Get("Authorization"))

	body, _ := io.ReadAll(req.Body)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	msgs := decoded["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestOpenAI_ParseResponse_PlainChat(t *testing.T) {
	o := NewOpenAI()
	body := []byte(`{"choices":[{"message":{"role":"assistant","content":"hi"},"finish_reason":"stop"}]}`)

	resp, err := o.ParseResponse(200, body)
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text())
	assert.Equal(t, StopEnd, resp.StopReason)
}

func TestOpenAI_ParseResponse_ToolCall(t *testing.T) {
	o := NewOpenAI()
	body := []byte(`{"choices":[{"message":{"role":"assistant","tool_calls":[
		{"id":"call_1","type":"function","function":{"name":"add","arguments":"{\"a\":2,\"b\":3}"}}
	]},"finish_reason":"tool_calls"}]}`)

	resp, err := o.ParseResponse(200, body)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, BlockToolUse, resp.Content[0].Kind)
	assert.Equal(t, "add", resp.Content[0].ToolUseName)
	assert.Equal(t, "call_1", resp.Content[0].ToolUseID)
	assert.Equal(t, StopToolUse, resp.StopReason)
}

func TestOpenAI_ParseResponse_ErrorStatus(t *testing.T) {
	o := NewOpenAI()
	_, err := o.ParseResponse(429, []byte(`{"error":{"message":"slow down"}}`))
	require.Error(t, err)
}

func TestOpenAI_StreamParser_TextDeltas(t *testing.T) {
	p := NewOpenAI().NewStreamParser()

	chunk := []byte(
		"data: {\"choices\":[{\"delta\":{\"content\":\"The \"},\"finish_reason\":\"\"}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{\"content\":\"answer.\"},\"finish_reason\":\"\"}]}\n\n" +
			"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n" +
			"data: [DONE]\n\n")

	events, err := p.Feed(chunk)
	require.NoError(t, err)

	var text string
	for _, e := range events {
		if e.Type == "delta" && e.DeltaKind == "text" {
			text += e.Text
		}
	}
	assert.Equal(t, "The answer.", text)
}

func TestOpenAI_IsNeutralWithAnthropicForEquivalentResponses(t *testing.T) {
	openaiResp, err := NewOpenAI().ParseResponse(200, []byte(`{"choices":[{"message":{"content":"hi"},"finish_reason":"stop"}]}`))
	require.NoError(t, err)

	anthropicResp, err := NewAnthropic().ParseResponse(200, []byte(`{"content":[{"type":"text","text":"hi"}],"stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`))
	require.NoError(t, err)

	assert.Equal(t, openaiResp.Text(), anthropicResp.Text())
}

func TestOpenAI_BuildRequest_RequiresBaseURL(t *testing.T) {
	_, err := NewOpenAI().BuildRequest(RequestParams{APIKey: "k", Model: "m"}, nil, nil)
	assert.Error(t, err)
}
