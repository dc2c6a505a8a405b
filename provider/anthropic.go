package provider

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/corebridge/agentcore/agenterr"
)

// Anthropic implements Provider for the Anthropic Messages API wire
// protocol (spec §4.2): POST {base}/v1/messages, x-api-key +
// anthropic-version headers, a top-level system string, typed content
// blocks, and typed SSE events. Thinking blocks are preserved verbatim.
type Anthropic struct {
	// APIVersion is the anthropic-version header value. Exposed for tests
	// that pin a fixture to a specific version string.
	APIVersion string
}

const defaultAnthropicVersion = "2023-06-01"

// NewAnthropic constructs the Anthropic adapter with the default API version.
func NewAnthropic() *Anthropic { return &Anthropic{APIVersion: defaultAnthropicVersion} }

func (a *Anthropic) Name() string { return "anthropic" }

type anthropicContent struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input *map[string]any `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicTool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

type anthropicThinking struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	Stream      bool               `json:"stream,omitempty"`
	Tools       []anthropicTool    `json:"tools,omitempty"`
	Thinking    *anthropicThinking `json:"thinking,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error"`
}

// buildAnthropicMessages converts the neutral shape into Anthropic's
// typed-content-block messages, extracting any system-role messages into
// the top-level system string (spec §4.2).
func buildAnthropicMessages(messages []Message) (system string, out []anthropicMessage) {
	for _, m := range messages {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Text()
			continue
		}

		am := anthropicMessage{Role: m.Role}
		if m.Role == RoleTool {
			am.Role = RoleUser // Anthropic carries tool results as user-role tool_result blocks
		}
		for _, b := range m.Content {
			switch b.Kind {
			case BlockText:
				am.Content = append(am.Content, anthropicContent{Type: "text", Text: b.Text})
			case BlockThinking:
				am.Content = append(am.Content, anthropicContent{
					Type:      "thinking",
					Thinking:  b.Text,
					Signature: b.ThinkingSignature,
				})
			case BlockToolUse:
				input := map[string]any{}
				if len(b.ToolUseInput) > 0 {
					_ = json.Unmarshal(b.ToolUseInput, &input)
				}
				am.Content = append(am.Content, anthropicContent{
					Type:  "tool_use",
					ID:    b.ToolUseID,
					Name:  b.ToolUseName,
					Input: &input,
				})
			case BlockToolResult:
				am.Content = append(am.Content, anthropicContent{
					Type:      "tool_result",
					ToolUseID: b.ToolResultID,
					Content:   b.ToolResultText,
					IsError:   b.ToolResultError,
				})
			}
		}
		out = append(out, am)
	}
	return system, out
}

func buildAnthropicTools(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, t := range tools {
		out = append(out, anthropicTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}
	return out
}

func (a *Anthropic) BuildRequest(params RequestParams, messages []Message, tools []ToolDefinition) (*http.Request, error) {
	if params.BaseURL == "" {
		return nil, agenterr.New(agenterr.InvalidArg, "api_base is required for provider anthropic")
	}

	system, reqMessages := buildAnthropicMessages(messages)
	body := anthropicRequest{
		Model:       params.Model,
		Messages:    reqMessages,
		System:      system,
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
		Stream:      params.Stream,
		Tools:       buildAnthropicTools(tools),
	}
	if params.Thinking.Enabled && params.Thinking.BudgetTokens > 0 {
		body.Thinking = &anthropicThinking{Type: "enabled", BudgetTokens: params.Thinking.BudgetTokens}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.InvalidArg, err, "marshal anthropic request")
	}

	req, err := http.NewRequest(http.MethodPost, params.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, agenterr.Wrap(agenterr.InvalidArg, err, "build anthropic request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", params.APIKey)
	version := a.APIVersion
	if version == "" {
		version = defaultAnthropicVersion
	}
	req.Header.Set("anthropic-version", version)
	for k, v := range params.ExtraHeaders {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (a *Anthropic) ParseResponse(statusCode int, body []byte) (*ChatResponse, error) {
	if err := classifyHTTPStatus(statusCode, body); err != nil {
		return nil, err
	}

	var resp anthropicResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, agenterr.Wrap(agenterr.Backend, err, "decode anthropic response")
	}
	if resp.Error != nil {
		return nil, agenterr.New(agenterr.Backend, "anthropic error: %s", resp.Error.Message)
	}

	var blocks []ContentBlock
	for _, c := range resp.Content {
		switch c.Type {
		case "text":
			blocks = append(blocks, ContentBlock{Kind: BlockText, Text: c.Text})
		case "thinking":
			blocks = append(blocks, ContentBlock{Kind: BlockThinking, Text: c.Thinking, ThinkingSignature: c.Signature})
		case "tool_use":
			var input []byte
			if c.Input != nil {
				input, _ = json.Marshal(*c.Input)
			} else {
				input = []byte("{}")
			}
			blocks = append(blocks, ContentBlock{
				Kind:         BlockToolUse,
				ToolUseID:    c.ID,
				ToolUseName:  c.Name,
				ToolUseInput: input,
			})
		}
	}

	stop := StopEnd
	switch resp.StopReason {
	case "tool_use":
		stop = StopToolUse
	case "max_tokens":
		stop = StopMaxTokens
	case "end_turn", "stop_sequence", "":
		stop = StopEnd
	}

	return &ChatResponse{
		Content:    blocks,
		StopReason: stop,
		Usage:      Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}, nil
}

// anthropicStreamEvent mirrors the typed SSE event shape (spec §4.2).
type anthropicStreamEvent struct {
	Type         string            `json:"type"`
	Index        int               `json:"index"`
	ContentBlock *anthropicContent `json:"content_block,omitempty"`
	Delta        *anthropicDelta   `json:"delta,omitempty"`
	Usage        *anthropicUsage   `json:"usage,omitempty"`
	Error        *anthropicError   `json:"error,omitempty"`
}

type anthropicDelta struct {
	Type        string `json:"type"` // text_delta, thinking_delta, input_json_delta
	Text        string `json:"text,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
	Signature   string `json:"signature,omitempty"`
}

// anthropicStreamParser implements StreamParser over Anthropic's typed SSE
// events: message_start, content_block_start, content_block_delta,
// content_block_stop, message_delta, message_stop (spec §4.2).
type anthropicStreamParser struct {
	scanner   *FrameScanner
	blockKind map[int]string
}

func (a *Anthropic) NewStreamParser() StreamParser {
	return &anthropicStreamParser{scanner: NewFrameScanner(), blockKind: map[int]string{}}
}

func (p *anthropicStreamParser) Feed(chunk []byte) ([]StreamEvent, error) {
	var events []StreamEvent
	for _, frame := range p.scanner.Feed(chunk) {
		data := bytes.TrimSpace(frame.Data)
		if len(data) == 0 {
			continue
		}

		var ev anthropicStreamEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "message_start":
			events = append(events, StreamEvent{Type: "message_start"})

		case "content_block_start":
			kind := BlockText
			toolID := ""
			toolName := ""
			if ev.ContentBlock != nil {
				switch ev.ContentBlock.Type {
				case "thinking":
					kind = BlockThinking
				case "tool_use":
					kind = BlockToolUse
					toolID = ev.ContentBlock.ID
					toolName = ev.ContentBlock.Name
				}
			}
			p.blockKind[ev.Index] = kind
			events = append(events, StreamEvent{Type: "block_start", BlockIndex: ev.Index, BlockKind: kind, ToolUseID: toolID, Text: toolName})

		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			var deltaKind, text string
			switch ev.Delta.Type {
			case "text_delta":
				deltaKind, text = "text", ev.Delta.Text
			case "thinking_delta":
				deltaKind, text = "thinking", ev.Delta.Thinking
			case "input_json_delta":
				deltaKind, text = "input_json", ev.Delta.PartialJSON
			}
			events = append(events, StreamEvent{
				Type:       "delta",
				BlockIndex: ev.Index,
				BlockKind:  p.blockKind[ev.Index],
				DeltaKind:  deltaKind,
				Text:       text,
			})

		case "content_block_stop":
			events = append(events, StreamEvent{Type: "block_stop", BlockIndex: ev.Index, BlockKind: p.blockKind[ev.Index]})

		case "message_delta":
			stop := StopEnd
			if ev.Delta != nil {
				switch ev.Delta.StopReason {
				case "tool_use":
					stop = StopToolUse
				case "max_tokens":
					stop = StopMaxTokens
				}
			}
			events = append(events, StreamEvent{Type: "message_delta", StopReason: stop})

		case "message_stop":
			events = append(events, StreamEvent{Type: "message_stop"})

		case "error":
			msg := "anthropic stream error"
			if ev.Error != nil {
				msg = ev.Error.Message
			}
			events = append(events, StreamEvent{Type: "error", Err: agenterr.New(agenterr.Backend, "%s", msg)})
		}
	}
	return events, nil
}
