// Package provider translates a neutral chat request into each supported
// LLM wire protocol and translates the response (or stream) back, per spec
// §4.2. Two adapters are implemented: OpenAI-compatible and Anthropic.
package provider

import "encoding/json"

// Role values for Message.Role.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ContentBlock kinds.
const (
	BlockText       = "text"
	BlockThinking   = "thinking"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// StopReason values for ChatResponse.StopReason.
const (
	StopEnd       = "end"
	StopMaxTokens = "max_tokens"
	StopToolUse   = "tool_use"
	StopError     = "error"
)

// ContentBlock is a single typed fragment of a Message (spec §3). Only the
// fields relevant to Kind are populated; the rest are zero.
type ContentBlock struct {
	Kind string `json:"kind"`

	// BlockText / BlockThinking
	Text string `json:"text,omitempty"`
	// ThinkingSignature is an opaque provider-issued signature accompanying
	// a thinking block. It is never inspected or edited, only replayed
	// verbatim on the next request (spec §9, "thinking blocks are opaque").
	ThinkingSignature string `json:"thinking_signature,omitempty"`

	// BlockToolUse
	ToolUseID    string          `json:"tool_use_id,omitempty"`
	ToolUseName  string          `json:"tool_use_name,omitempty"`
	ToolUseInput json.RawMessage `json:"tool_use_input,omitempty"`

	// BlockToolResult
	ToolResultID    string `json:"tool_result_id,omitempty"`
	ToolResultText  string `json:"tool_result_text,omitempty"`
	ToolResultError bool   `json:"tool_result_error,omitempty"`
}

// Message is the universal, provider-neutral message shape (spec §3).
type Message struct {
	Role    string         `json:"role"`
	Content []ContentBlock `json:"content"`
}

// Text returns the concatenation of all BlockText content in m, which is
// the common case of a plain-text message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// NewTextMessage builds a single-block text message.
func NewTextMessage(role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{{Kind: BlockText, Text: text}}}
}

// NewToolResultMessage builds the tool-role message appended after invoking
// a tool_use block with the given id.
func NewToolResultMessage(toolCallID, text string, isError bool) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentBlock{{
			Kind:            BlockToolResult,
			ToolResultID:    toolCallID,
			ToolResultText:  text,
			ToolResultError: isError,
		}},
	}
}

// ToolUseBlocks returns every tool_use content block in m, in order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolDefinition describes a tool advertised to the model (spec §4.4).
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON Schema
}

// ThinkingConfig toggles and bounds a provider's extended-thinking mode.
type ThinkingConfig struct {
	Enabled      bool
	BudgetTokens int
}

// RequestParams carries the sampling and transport parameters of a single
// chat call (spec §4.3's client configuration, minus routing fields).
type RequestParams struct {
	BaseURL      string
	APIKey       string
	Model        string
	MaxTokens    int
	Temperature  float64
	TimeoutMs    int
	Thinking     ThinkingConfig
	Stream       bool
	ExtraHeaders map[string]string
}

// Usage carries token accounting from a single LLM call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// ChatResponse is the provider-neutral result of a single (non-streaming or
// fully-drained streaming) LLM call (spec §3).
type ChatResponse struct {
	Content    []ContentBlock
	StopReason string
	Usage      Usage
}

// Text concatenates all text blocks in the response content.
func (r ChatResponse) Text() string {
	var out string
	for _, b := range r.Content {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// StreamEvent is a single normalized increment of a streaming chat call
// (spec §3).
type StreamEvent struct {
	Type       string // message_start, block_start, delta, block_stop, message_delta, message_stop, error
	BlockIndex int
	BlockKind  string // text, thinking, tool_use (valid on block_start/block_stop/delta)
	DeltaKind  string // text, thinking, input_json (valid on delta)
	Text       string // delta payload: text/thinking fragment, or tool_use metadata on block_start
	ToolUseID  string // populated on block_start for a tool_use block
	StopReason string // populated on message_delta
	Err        error  // populated on type == error
}
