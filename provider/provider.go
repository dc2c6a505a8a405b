package provider

import (
	"net/http"

	"github.com/corebridge/agentcore/registry"
)

// StreamParser incrementally consumes raw HTTP body bytes from a streaming
// response and yields normalized StreamEvents. A StreamParser is stateful
// and bound to a single in-flight response; it must tolerate being Fed
// arbitrarily small byte slices, including mid-frame splits (spec §4.2,
// §9).
type StreamParser interface {
	Feed(chunk []byte) ([]StreamEvent, error)
}

// Provider implements the fixed capability set every LLM wire protocol
// adapter exposes (spec §4.2): build the HTTP request, parse a
// non-streaming response body, and construct a fresh StreamParser for a
// streaming one.
type Provider interface {
	Name() string
	BuildRequest(params RequestParams, messages []Message, tools []ToolDefinition) (*http.Request, error)
	ParseResponse(statusCode int, body []byte) (*ChatResponse, error)
	NewStreamParser() StreamParser
}

// Registry holds Providers keyed by name ("openai", "anthropic", ...). It
// is typically populated once at startup (via the package-level Default)
// and read concurrently thereafter; reads and writes go through
// BaseRegistry's RWMutex.
type Registry struct {
	*registry.BaseRegistry[Provider]
}

// NewRegistry constructs an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{BaseRegistry: registry.NewBaseRegistry[Provider]()}
}

var defaultRegistry = func() *Registry {
	r := NewRegistry()
	_ = r.Register("openai", NewOpenAI())
	_ = r.Register("anthropic", NewAnthropic())
	return r
}()

// Default returns the process-wide registry pre-populated with the two
// built-in providers. Additional providers may be registered into it by
// name (spec §9: "new providers are added by implementing the capability
// set and registering by name").
func Default() *Registry { return defaultRegistry }
