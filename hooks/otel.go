package hooks

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName mirrors the reference repo's observability package's
// tracer/meter naming convention.
const instrumentationName = "github.com/corebridge/agentcore/hooks"

// OTelSubscriber wraps run and tool hook events as spans and counters
// using the globally configured otel providers; iteration and LLM events
// are not observed. It is an
// optional, bundled subscriber: installing it is the only place in the
// module that imports otel/trace and otel/metric concretely, so a caller
// who never calls NewOTelSubscriber never pulls in a tracer/meter provider
// at runtime (spec §11's "optional subscriber, not mandatory wiring").
type OTelSubscriber struct {
	tracer      trace.Tracer
	runCounter  metric.Int64Counter
	toolCounter metric.Int64Counter

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewOTelSubscriber constructs a subscriber against the process-global
// TracerProvider/MeterProvider (otel.Tracer/otel.Meter), which default to
// no-op implementations until a caller configures an SDK — so the
// subscriber is always safe to install.
func NewOTelSubscriber() *OTelSubscriber {
	meter := otel.Meter(instrumentationName)
	runCounter, _ := meter.Int64Counter("agent_runs_total")
	toolCounter, _ := meter.Int64Counter("agent_tool_calls_total")

	return &OTelSubscriber{
		tracer:      otel.Tracer(instrumentationName),
		runCounter:  runCounter,
		toolCounter: toolCounter,
		spans:       map[string]trace.Span{},
	}
}

// Hooks returns a Hooks value whose callbacks feed s. Install it with
// hooks.SetHooks(sub.Hooks()).
func (s *OTelSubscriber) Hooks() *Hooks {
	return &Hooks{
		RunStart:  s.onRunStart,
		RunEnd:    s.onRunEnd,
		ToolStart: s.onToolStart,
		ToolEnd:   s.onToolEnd,
	}
}

func (s *OTelSubscriber) onRunStart(ev Event) {
	_, span := s.tracer.Start(context.Background(), "agent.run")
	span.SetAttributes()
	s.mu.Lock()
	s.spans[ev.RunID] = span
	s.mu.Unlock()
	if s.runCounter != nil {
		s.runCounter.Add(context.Background(), 1)
	}
}

func (s *OTelSubscriber) onRunEnd(ev Event) {
	s.mu.Lock()
	span, ok := s.spans[ev.RunID]
	if ok {
		delete(s.spans, ev.RunID)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if ev.Err != nil {
		span.RecordError(ev.Err)
	}
	span.End()
}

func (s *OTelSubscriber) onToolStart(ev Event) {
	key := ev.RunID + ":" + ev.ToolCallID
	_, span := s.tracer.Start(context.Background(), "agent.tool."+ev.ToolName)
	s.mu.Lock()
	s.spans[key] = span
	s.mu.Unlock()
	if s.toolCounter != nil {
		s.toolCounter.Add(context.Background(), 1)
	}
}

func (s *OTelSubscriber) onToolEnd(ev Event) {
	key := ev.RunID + ":" + ev.ToolCallID
	s.mu.Lock()
	span, ok := s.spans[key]
	if ok {
		delete(s.spans, key)
	}
	s.mu.Unlock()
	if !ok {
		return
	}
	if ev.ToolError {
		span.RecordError(fmt.Errorf("tool %q returned an error result", ev.ToolName))
	}
	span.End()
}
