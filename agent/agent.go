// Package agent implements the ReAct loop of spec §4.5: alternating LLM
// calls and tool invocations over a caller-owned conversation buffer until
// a terminal response or the iteration cap is reached.
package agent

import (
	"context"

	"github.com/google/uuid"

	"github.com/corebridge/agentcore/agenterr"
	"github.com/corebridge/agentcore/hooks"
	"github.com/corebridge/agentcore/llm"
	"github.com/corebridge/agentcore/provider"
	"github.com/corebridge/agentcore/tool"
)

// TerminalReason classifies why a Run returned.
type TerminalReason string

const (
	TerminalEnd           TerminalReason = "end"
	TerminalMaxTokens     TerminalReason = "max_tokens"
	TerminalMaxIterations TerminalReason = "max_iterations"
)

// Result is the outcome of a single Agent.Run (spec §3's AgentResult).
type Result struct {
	Content        string
	Iterations     int
	TerminalReason TerminalReason
	Usage          provider.Usage
	Messages       []provider.Message
}

// Agent orchestrates one named ReAct loop against an LLM client and a tool
// registry. An Agent holds no conversation state of its own: the caller
// passes the buffer into Run and owns it afterward (spec §9's open-question
// resolution — no hidden per-agent memory unless a caller layers one on).
type Agent struct {
	Name          string
	Instructions  string
	LLM           *llm.Client
	Tools         *tool.Registry
	MaxIterations int
}

// New constructs an Agent. maxIterations must be >= 1.
func New(name, instructions string, client *llm.Client, tools *tool.Registry, maxIterations int) (*Agent, error) {
	if maxIterations < 1 {
		return nil, agenterr.New(agenterr.InvalidArg, "max_iterations must be >= 1, got %d", maxIterations)
	}
	if client == nil {
		return nil, agenterr.New(agenterr.InvalidArg, "agent %q requires an llm.Client", name)
	}
	if tools == nil {
		tools = tool.NewRegistry()
	}
	return &Agent{Name: name, Instructions: instructions, LLM: client, Tools: tools, MaxIterations: maxIterations}, nil
}

// Run executes the ReAct loop over messages, which is seeded by the caller
// (typically `[system: instructions, user: input]` for a fresh buffer, or a
// pre-existing buffer plus a new user message) and returned, appended to,
// as part of Result (spec §4.5).
func (a *Agent) Run(ctx context.Context, messages []provider.Message) (*Result, error) {
	runID := uuid.NewString()
	hooks.Fire(hooks.Event{Point: hooks.RunStart, RunID: runID, AgentName: a.Name})

	buf := append([]provider.Message(nil), messages...)
	toolDefs := a.Tools.Advertise()

	var lastUsage provider.Usage
	var lastContent string

	for i := 1; i <= a.MaxIterations; i++ {
		hooks.Fire(hooks.Event{Point: hooks.IterStart, RunID: runID, AgentName: a.Name, Iteration: i})

		resp, err := a.step(ctx, runID, i, buf, toolDefs)
		if err != nil {
			hooks.Fire(hooks.Event{Point: hooks.RunEnd, RunID: runID, AgentName: a.Name, Err: err})
			return nil, err
		}
		lastUsage = resp.Usage
		lastContent = resp.Text()

		if resp.StopReason != provider.StopToolUse {
			buf = append(buf, provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
			hooks.Fire(hooks.Event{Point: hooks.IterEnd, RunID: runID, AgentName: a.Name, Iteration: i})
			reason := TerminalEnd
			if resp.StopReason == provider.StopMaxTokens {
				reason = TerminalMaxTokens
			}
			hooks.Fire(hooks.Event{Point: hooks.RunEnd, RunID: runID, AgentName: a.Name})
			return &Result{Content: lastContent, Iterations: i, TerminalReason: reason, Usage: lastUsage, Messages: buf}, nil
		}

		if i == a.MaxIterations {
			// The cap is hit while the model is still requesting tool use: the
			// outstanding tool_use blocks are never executed (no further
			// iteration could consume their results), and a dedicated
			// tools-disabled call is issued instead to force a final answer.
			buf = append(buf, provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
			hooks.Fire(hooks.Event{Point: hooks.IterEnd, RunID: runID, AgentName: a.Name, Iteration: i})
			return a.forceFinalSynthesis(ctx, runID, i, buf, lastContent)
		}

		buf = append(buf, provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
		buf = append(buf, a.runTools(ctx, runID, resp)...)
		hooks.Fire(hooks.Event{Point: hooks.IterEnd, RunID: runID, AgentName: a.Name, Iteration: i})
	}

	hooks.Fire(hooks.Event{Point: hooks.RunEnd, RunID: runID, AgentName: a.Name})
	return &Result{Content: lastContent, Iterations: a.MaxIterations, TerminalReason: TerminalMaxIterations, Usage: lastUsage, Messages: buf}, nil
}

// step builds a request from buf and toolDefs, and calls the LLM, emitting
// llm_request/llm_response hooks.
func (a *Agent) step(ctx context.Context, runID string, iter int, buf []provider.Message, toolDefs []provider.ToolDefinition) (*provider.ChatResponse, error) {
	hooks.Fire(hooks.Event{Point: hooks.LLMRequest, RunID: runID, AgentName: a.Name, Iteration: iter})
	resp, err := a.LLM.Chat(ctx, buf, toolDefs)
	if err != nil {
		return nil, err
	}
	hooks.Fire(hooks.Event{
		Point: hooks.LLMResponse, RunID: runID, AgentName: a.Name, Iteration: iter,
		InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens, StopReason: resp.StopReason,
	})
	return resp, nil
}

// runTools invokes every tool_use block in resp sequentially, in provider
// order. A failing tool does not stop the remaining ones: every emitted
// tool_use must be answered before the next LLM call (spec §4.5's
// tie-break rule). Returns the tool-result messages to append.
func (a *Agent) runTools(ctx context.Context, runID string, resp *provider.ChatResponse) []provider.Message {
	var out []provider.Message
	for _, block := range resp.ToolUseBlocks() {
		hooks.Fire(hooks.Event{
			Point: hooks.ToolStart, RunID: runID, AgentName: a.Name,
			ToolCallID: block.ToolUseID, ToolName: block.ToolUseName, ToolArgs: string(block.ToolUseInput),
		})

		text, isError, err := a.Tools.Invoke(ctx, block.ToolUseName, block.ToolUseInput)
		if err != nil {
			text = "tool error: " + err.Error()
			isError = true
		}

		hooks.Fire(hooks.Event{
			Point: hooks.ToolEnd, RunID: runID, AgentName: a.Name,
			ToolCallID: block.ToolUseID, ToolName: block.ToolUseName, ToolResult: text, ToolError: isError,
		})

		out = append(out, provider.NewToolResultMessage(block.ToolUseID, text, isError))
	}
	return out
}

// forceFinalSynthesis issues one additional LLM call with tools disabled so
// the model produces a human-readable answer after the iteration cap is
// hit while it was still requesting tool use (spec §4.5). If that call
// itself fails, the last assistant content is returned instead with
// terminal_reason = max_iterations.
func (a *Agent) forceFinalSynthesis(ctx context.Context, runID string, iter int, buf []provider.Message, lastContent string) (*Result, error) {
	resp, err := a.step(ctx, runID, iter+1, buf, nil)
	if err != nil {
		hooks.Fire(hooks.Event{Point: hooks.RunEnd, RunID: runID, AgentName: a.Name})
		return &Result{Content: lastContent, Iterations: iter, TerminalReason: TerminalMaxIterations, Messages: buf}, nil
	}

	buf = append(buf, provider.Message{Role: provider.RoleAssistant, Content: resp.Content})
	hooks.Fire(hooks.Event{Point: hooks.RunEnd, RunID: runID, AgentName: a.Name})
	// The synthesis call is not counted as an extra iteration: it shares the
	// capped iteration's slot, keeping Iterations <= MaxIterations (spec §8
	// property 3) even though it is a distinct LLM call.
	return &Result{
		Content:        resp.Text(),
		Iterations:     iter,
		TerminalReason: TerminalMaxIterations,
		Usage:          resp.Usage,
		Messages:       buf,
	}, nil
}
