package llm

import (
	"encoding/json"

	"github.com/corebridge/agentcore/provider"
)

// accumulator rebuilds a provider.ChatResponse from the StreamEvent
// sequence emitted by a StreamParser, per spec §3's StreamEvent ordering
// guarantee: for any content block, block_start precedes its deltas,
// which precede its block_stop.
type accumulator struct {
	order      []int
	blocks     map[int]*provider.ContentBlock
	inputJSON  map[int]string
	stopReason string
}

func newAccumulator() *accumulator {
	return &accumulator{
		blocks:    map[int]*provider.ContentBlock{},
		inputJSON: map[int]string{},
	}
}

func (a *accumulator) apply(ev provider.StreamEvent) {
	switch ev.Type {
	case "block_start":
		if _, exists := a.blocks[ev.BlockIndex]; !exists {
			a.order = append(a.order, ev.BlockIndex)
		}
		a.blocks[ev.BlockIndex] = &provider.ContentBlock{Kind: ev.BlockKind, ToolUseID: ev.ToolUseID}
		if ev.BlockKind == provider.BlockToolUse && ev.Text != "" {
			a.blocks[ev.BlockIndex].ToolUseName = ev.Text
		}

	case "delta":
		b, ok := a.blocks[ev.BlockIndex]
		if !ok {
			b = &provider.ContentBlock{Kind: ev.BlockKind}
			a.blocks[ev.BlockIndex] = b
			a.order = append(a.order, ev.BlockIndex)
		}
		switch ev.DeltaKind {
		case "text":
			b.Text += ev.Text
		case "thinking":
			b.Text += ev.Text
		case "input_json":
			a.inputJSON[ev.BlockIndex] += ev.Text
		}

	case "block_stop":
		if raw, ok := a.inputJSON[ev.BlockIndex]; ok {
			if b := a.blocks[ev.BlockIndex]; b != nil {
				b.ToolUseInput = json.RawMessage(raw)
			}
		}

	case "message_delta":
		if ev.StopReason != "" {
			a.stopReason = ev.StopReason
		}

	case "message_stop":
		if a.stopReason == "" {
			a.stopReason = provider.StopEnd
		}
	}
}

func (a *accumulator) result() *provider.ChatResponse {
	blocks := make([]provider.ContentBlock, 0, len(a.order))
	for _, idx := range a.order {
		blocks = append(blocks, *a.blocks[idx])
	}
	stop := a.stopReason
	if stop == "" {
		stop = provider.StopEnd
	}
	return &provider.ChatResponse{Content: blocks, StopReason: stop}
}
