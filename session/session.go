// Package session implements the scoped Agent/tool.Registry owner of spec
// §4.6: a Session tracks everything created through it and tears it all
// down, in reverse-creation order, on Close.
package session

import (
	"sync"

	"github.com/corebridge/agentcore/agent"
	"github.com/corebridge/agentcore/llm"
	"github.com/corebridge/agentcore/tool"
)

// closer is satisfied by anything a Session can own and later tear down.
// Agents and tool registries hold no live resources of their own (the
// underlying llm.Client/pool.Pool outlive a Session), so closing an agent
// is a no-op and closing a tool registry clears its registrations.
type closer interface {
	Close() error
}

// Session is a scoped owner of Agents and tool.Registries (spec §4.6). It
// is not safe for concurrent mutation from multiple goroutines calling
// NewAgent/NewToolRegistry/Close simultaneously; concurrent agent Run calls
// against agents it already returned are fine (spec §5).
type Session struct {
	mu      sync.Mutex
	owned   []closer
	closed  bool
}

// New returns an empty Session.
func New() *Session {
	return &Session{}
}

// NewToolRegistry creates a tool.Registry owned by s; it is torn down when
// s.Close runs.
func (s *Session) NewToolRegistry() *tool.Registry {
	r := tool.NewRegistry()
	s.track(registryCloser{r})
	return r
}

// NewAgent creates an agent.Agent owned by s.
func (s *Session) NewAgent(name, instructions string, client *llm.Client, tools *tool.Registry, maxIterations int) (*agent.Agent, error) {
	a, err := agent.New(name, instructions, client, tools, maxIterations)
	if err != nil {
		return nil, err
	}
	s.track(agentCloser{a})
	return a, nil
}

func (s *Session) track(c closer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.owned = append(s.owned, c)
}

// Close tears down everything the Session created, in reverse-creation
// order (spec §4.6), stopping at and returning the first error (later
// members remain torn down as far as they got; Close is not retryable).
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	for i := len(s.owned) - 1; i >= 0; i-- {
		if err := s.owned[i].Close(); err != nil {
			return err
		}
	}
	return nil
}

// agentCloser adapts *agent.Agent to closer. An Agent owns no resources
// beyond the llm.Client/tool.Registry passed into it, so closing one is
// always successful; it exists so agents participate in the same ordered
// teardown list as future resource-owning session members.
type agentCloser struct{ a *agent.Agent }

func (agentCloser) Close() error { return nil }

// registryCloser adapts *tool.Registry to closer, clearing it on Close so
// a Session.Close leaves no dangling tool registrations behind.
type registryCloser struct{ r *tool.Registry }

func (c registryCloser) Close() error {
	c.r.Clear()
	return nil
}
