// Package hooks implements the process-wide, single-registration
// observability bus of spec §4.6: a fixed set of named points in the agent
// loop, each delivering an immutable snapshot struct to at most one
// installed callback set at a time.
package hooks

import "sync/atomic"

// Point identifies a well-defined location in the agent loop where hooks
// fire (spec §4.6).
type Point string

const (
	RunStart    Point = "run_start"
	RunEnd      Point = "run_end"
	IterStart   Point = "iter_start"
	IterEnd     Point = "iter_end"
	LLMRequest  Point = "llm_request"
	LLMResponse Point = "llm_response"
	ToolStart   Point = "tool_start"
	ToolEnd     Point = "tool_end"
)

// Event is the immutable snapshot delivered to a hook callback. Only the
// fields relevant to Point are populated; callbacks must not mutate it and
// must not block indefinitely (spec §4.6, §5).
type Event struct {
	Point     Point
	RunID     string
	AgentName string
	Iteration int

	// LLMRequest/LLMResponse
	InputTokens  int
	OutputTokens int
	StopReason   string

	// ToolStart/ToolEnd
	ToolCallID string
	ToolName   string
	ToolArgs   string
	ToolResult string
	ToolError  bool

	// RunEnd
	Err error
}

// Callback receives a single hook Event. It must return promptly: the
// agent loop is synchronous with respect to hooks (spec §4.6).
type Callback func(Event)

// Hooks is the full set of callbacks a caller may install. A nil field
// means that point is not observed.
type Hooks struct {
	RunStart    Callback
	RunEnd      Callback
	IterStart   Callback
	IterEnd     Callback
	LLMRequest  Callback
	LLMResponse Callback
	ToolStart   Callback
	ToolEnd     Callback
}

var installed atomic.Pointer[Hooks]

// SetHooks installs h as the process-wide hook set, replacing any
// previously installed set. Passing nil clears it (spec §4.6's
// "set_hooks(NULL) clears"). Installation is a single atomic write; readers
// (the agent loop invoking hooks) never block on it (spec §5).
func SetHooks(h *Hooks) {
	installed.Store(h)
}

// GetHooks returns the currently installed hook set, or nil if none is
// installed.
func GetHooks() *Hooks {
	return installed.Load()
}

// emit looks up cb on the currently installed Hooks (if any) and invokes it
// with ev. It is a no-op if no hooks are installed or the specific
// callback is nil.
func emit(pick func(*Hooks) Callback, ev Event) {
	h := installed.Load()
	if h == nil {
		return
	}
	if cb := pick(h); cb != nil {
		cb(ev)
	}
}

// Fire dispatches ev to the installed callback for ev.Point, if any.
func Fire(ev Event) {
	switch ev.Point {
	case RunStart:
		emit(func(h *Hooks) Callback { return h.RunStart }, ev)
	case RunEnd:
		emit(func(h *Hooks) Callback { return h.RunEnd }, ev)
	case IterStart:
		emit(func(h *Hooks) Callback { return h.IterStart }, ev)
	case IterEnd:
		emit(func(h *Hooks) Callback { return h.IterEnd }, ev)
	case LLMRequest:
		emit(func(h *Hooks) Callback { return h.LLMRequest }, ev)
	case LLMResponse:
		emit(func(h *Hooks) Callback { return h.LLMResponse }, ev)
	case ToolStart:
		emit(func(h *Hooks) Callback { return h.ToolStart }, ev)
	case ToolEnd:
		emit(func(h *Hooks) Callback { return h.ToolEnd }, ev)
	}
}
