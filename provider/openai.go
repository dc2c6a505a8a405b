package provider

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/corebridge/agentcore/agenterr"
)

// OpenAI implements Provider for the OpenAI-compatible chat/completions
// wire protocol (spec §4.2): POST {base}/chat/completions,
// Authorization: Bearer <key>, choices[0].delta streaming increments,
// finish_reason mapping to stop reason. No native thinking channel.
type OpenAI struct{}

// NewOpenAI constructs the OpenAI-compatible adapter.
func NewOpenAI() *OpenAI { return &OpenAI{} }

func (o *OpenAI) Name() string { return "openai" }

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content,omitempty"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openAIToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openAITool struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Tools       []openAITool    `json:"tools,omitempty"`
	ToolChoice  string          `json:"tool_choice,omitempty"`
}

type openAIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

type openAIResponse struct {
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage"`
	Error   *openAIError   `json:"error"`
}

type openAIChoice struct {
	Message      openAIMessage `json:"message"`
	FinishReason string        `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// buildOpenAIMessages flattens the neutral Message/ContentBlock shape into the
// OpenAI role+content(+tool_calls) shape: assistant tool_use blocks become
// the tool_calls array, tool_result blocks become separate tool-role
// messages (spec §4.2).
func buildOpenAIMessages(messages []Message) []openAIMessage {
	var out []openAIMessage
	for _, m := range messages {
		switch m.Role {
		case RoleTool:
			for _, b := range m.Content {
				if b.Kind != BlockToolResult {
					continue
				}
				content := b.ToolResultText
				if b.ToolResultError {
					content = "tool error: " + content
				}
				out = append(out, openAIMessage{Role: RoleTool, Content: content, ToolCallID: b.ToolResultID})
			}
		case RoleAssistant:
			msg := openAIMessage{Role: RoleAssistant}
			for _, b := range m.Content {
				switch b.Kind {
				case BlockText:
					msg.Content += b.Text
				case BlockToolUse:
					msg.ToolCalls = append(msg.ToolCalls, openAIToolCall{
						ID:   b.ToolUseID,
						Type: "function",
						Function: openAIFunctionCall{
							Name:      b.ToolUseName,
							Arguments: string(b.ToolUseInput),
						},
					})
				}
			}
			out = append(out, msg)
		default:
			out = append(out, openAIMessage{Role: m.Role, Content: m.Text()})
		}
	}
	return out
}

func buildOpenAITools(tools []ToolDefinition) []openAITool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAITool, 0, len(tools))
	for _, t := range tools {
		out = append(out, openAITool{
			Type: "function",
			Function: openAIToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return out
}

func (o *OpenAI) BuildRequest(params RequestParams, messages []Message, tools []ToolDefinition) (*http.Request, error) {
	reqMessages := buildOpenAIMessages(messages)
	if params.BaseURL == "" {
		return nil, agenterr.New(agenterr.InvalidArg, "api_base is required for provider openai")
	}

	body := openAIRequest{
		Model:       params.Model,
		Messages:    reqMessages,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stream:      params.Stream,
		Tools:       buildOpenAITools(tools),
	}
	if len(body.Tools) > 0 {
		body.ToolChoice = "auto"
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.InvalidArg, err, "marshal openai request")
	}

	req, err := http.NewRequest(http.MethodPost, params.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.InvalidArg, err, "build openai request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+params.APIKey)
	for k, v := range params.ExtraHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

func classifyHTTPStatus(status int, body []byte) error {
	switch {
	case status == http.StatusOK:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return agenterr.New(agenterr.Auth, "http %d: %s", status, string(body))
	case status == http.StatusTooManyRequests:
		return agenterr.New(agenterr.RateLimit, "http %d: %s", status, string(body))
	case status >= 400 && status < 500:
		return agenterr.New(agenterr.BadRequest, "http %d: %s", status, string(body))
	case status >= 500:
		return agenterr.New(agenterr.Server, "http %d: %s", status, string(body))
	default:
		return agenterr.New(agenterr.Backend, "http %d: %s", status, string(body))
	}
}

func (o *OpenAI) ParseResponse(statusCode int, body []byte) (*ChatResponse, error) {
	if err := classifyHTTPStatus(statusCode, body); err != nil {
		return nil, err
	}

	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, agenterr.Wrap(agenterr.Backend, err, "decode openai response")
	}
	if resp.Error != nil {
		return nil, agenterr.New(agenterr.Backend, "openai error: %s", resp.Error.Message)
	}
	if len(resp.Choices) == 0 {
		return nil, agenterr.New(agenterr.Backend, "openai response had no choices")
	}

	choice := resp.Choices[0]
	var blocks []ContentBlock
	if choice.Message.Content != "" {
		blocks = append(blocks, ContentBlock{Kind: BlockText, Text: choice.Message.Content})
	}
	for _, tc := range choice.Message.ToolCalls {
		id := tc.ID
		if id == "" {
			id = "call_" + strconv.Itoa(len(blocks))
		}
		blocks = append(blocks, ContentBlock{
			Kind:         BlockToolUse,
			ToolUseID:    id,
			ToolUseName:  tc.Function.Name,
			ToolUseInput: json.RawMessage(tc.Function.Arguments),
		})
	}

	stop := StopEnd
	switch choice.FinishReason {
	case "tool_calls":
		stop = StopToolUse
	case "length":
		stop = StopMaxTokens
	case "stop", "":
		stop = StopEnd
	}

	usage := Usage{}
	if resp.Usage != nil {
		usage = Usage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	}

	return &ChatResponse{Content: blocks, StopReason: stop, Usage: usage}, nil
}

// openAIStreamResponse mirrors one streamed chunk, whose choices[0].delta
// carries the increment.
type openAIStreamResponse struct {
	Choices []openAIStreamChoice `json:"choices"`
	Usage   *openAIUsage         `json:"usage"`
	Error   *openAIError         `json:"error"`
}

type openAIStreamChoice struct {
	Delta        openAIStreamDelta `json:"delta"`
	FinishReason string            `json:"finish_reason"`
}

type openAIStreamDelta struct {
	Content   string                `json:"content"`
	ToolCalls []openAIDeltaToolCall `json:"tool_calls"`
}

type openAIDeltaToolCall struct {
	Index    int                `json:"index"`
	ID       string             `json:"id"`
	Function openAIFunctionCall `json:"function"`
}

// openAIStreamParser implements StreamParser over SSE "data: {...}\n\n"
// frames terminated by a "data: [DONE]" sentinel (spec §4.2, §6).
type openAIStreamParser struct {
	scanner       *FrameScanner
	started       bool
	toolNames     map[int]string
	toolIDs       map[int]string
	toolOpenIndex map[int]bool
}

func (o *OpenAI) NewStreamParser() StreamParser {
	return &openAIStreamParser{
		scanner:       NewFrameScanner(),
		toolNames:     map[int]string{},
		toolIDs:       map[int]string{},
		toolOpenIndex: map[int]bool{},
	}
}

func (p *openAIStreamParser) Feed(chunk []byte) ([]StreamEvent, error) {
	var events []StreamEvent
	if !p.started {
		events = append(events, StreamEvent{Type: "message_start"})
		p.started = true
	}

	for _, frame := range p.scanner.Feed(chunk) {
		data := bytes.TrimSpace(frame.Data)
		if len(data) == 0 {
			continue
		}
		if bytes.Equal(data, []byte("[DONE]")) {
			events = append(events, StreamEvent{Type: "message_stop"})
			continue
		}

		var sr openAIStreamResponse
		if err := json.Unmarshal(data, &sr); err != nil {
			continue
		}
		if sr.Error != nil {
			events = append(events, StreamEvent{Type: "error", Err: fmt.Errorf("openai stream error: %s", sr.Error.Message)})
			continue
		}
		if len(sr.Choices) == 0 {
			continue
		}
		choice := sr.Choices[0]

		if choice.Delta.Content != "" {
			events = append(events, StreamEvent{
				Type:      "delta",
				BlockKind: BlockText,
				DeltaKind: "text",
				Text:      choice.Delta.Content,
			})
		}

		for _, tc := range choice.Delta.ToolCalls {
			if !p.toolOpenIndex[tc.Index] {
				p.toolOpenIndex[tc.Index] = true
				p.toolIDs[tc.Index] = tc.ID
				p.toolNames[tc.Index] = tc.Function.Name
				events = append(events, StreamEvent{
					Type:       "block_start",
					BlockIndex: tc.Index,
					BlockKind:  BlockToolUse,
					ToolUseID:  tc.ID,
					Text:       tc.Function.Name,
				})
			}
			if tc.Function.Arguments != "" {
				events = append(events, StreamEvent{
					Type:       "delta",
					BlockIndex: tc.Index,
					BlockKind:  BlockToolUse,
					DeltaKind:  "input_json",
					Text:       tc.Function.Arguments,
				})
			}
		}

		if choice.FinishReason != "" {
			for idx := range p.toolOpenIndex {
				events = append(events, StreamEvent{Type: "block_stop", BlockIndex: idx, BlockKind: BlockToolUse})
			}
			stop := StopEnd
			switch choice.FinishReason {
			case "tool_calls":
				stop = StopToolUse
			case "length":
				stop = StopMaxTokens
			}
			events = append(events, StreamEvent{Type: "message_delta", StopReason: stop})
		}
	}
	return events, nil
}
