// Package llm implements the LLM client of spec §4.3: resolves a provider
// by name/compatibility mode and exposes chat + streaming-chat operations
// against the neutral request/response shape defined in package provider.
package llm

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/corebridge/agentcore/agenterr"
	"github.com/corebridge/agentcore/config"
	"github.com/corebridge/agentcore/pool"
	"github.com/corebridge/agentcore/provider"
)

// EventSignal is returned by an OnEvent callback to indicate whether
// ChatStream should keep reading the response stream.
type EventSignal int

const (
	Continue EventSignal = iota
	Abort
)

// OnEvent is invoked once per normalized StreamEvent during ChatStream.
type OnEvent func(provider.StreamEvent) EventSignal

// Client binds one LLMConfig to a resolved Provider and an HTTP pool.
type Client struct {
	cfg      config.LLMConfig
	provider provider.Provider
	pool     *pool.Pool
}

// New resolves cfg's provider against registry (provider.Default() when
// registry is nil) and returns a ready Client.
// PROVIDER_NOT_FOUND is returned if no provider is registered under
// cfg.ResolvedProvider().
func New(cfg config.LLMConfig, p *pool.Pool, registry *provider.Registry) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if registry == nil {
		registry = provider.Default()
	}
	prov, ok := registry.Get(cfg.ResolvedProvider())
	if !ok {
		return nil, agenterr.New(agenterr.ProviderNotFound, "provider %q is not registered", cfg.ResolvedProvider())
	}
	if p == nil {
		p = pool.New(pool.Config{})
	}
	return &Client{cfg: cfg, provider: prov, pool: p}, nil
}

func (c *Client) requestParams(stream bool) provider.RequestParams {
	return provider.RequestParams{
		BaseURL:      c.cfg.APIBase,
		APIKey:       c.cfg.APIKey,
		Model:        c.cfg.Model,
		MaxTokens:    c.cfg.MaxTokens,
		TimeoutMs:    c.cfg.TimeoutMs,
		Thinking:     provider.ThinkingConfig{Enabled: c.cfg.Thinking.Enabled, BudgetTokens: c.cfg.Thinking.BudgetTokens},
		Stream:       stream,
		ExtraHeaders: c.cfg.ExtraHeaders,
	}
}

func originOf(req *http.Request) string {
	return req.URL.Scheme + "://" + req.URL.Host
}

// classifyTransportErr maps a low-level net/http error into the taxonomy
// of spec §4.1/§7.
func classifyTransportErr(err error) error {
	if err == nil {
		return nil
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return agenterr.Wrap(agenterr.Timeout, err, "request timed out")
		}
		var dnsErr *net.DNSError
		if errors.As(urlErr.Err, &dnsErr) {
			return agenterr.Wrap(agenterr.DNS, err, "dns resolution failed")
		}
		var tlsErr tls.RecordHeaderError
		if errors.As(urlErr.Err, &tlsErr) {
			return agenterr.Wrap(agenterr.TLS, err, "tls handshake failed")
		}
		return agenterr.Wrap(agenterr.Network, err, "network error")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return agenterr.Wrap(agenterr.Timeout, err, "request timed out")
	}
	if errors.Is(err, context.Canceled) {
		return agenterr.Wrap(agenterr.Cancelled, err, "request cancelled")
	}
	return agenterr.Wrap(agenterr.Network, err, "network error")
}

func (c *Client) timeoutContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.cfg.TimeoutMs <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, time.Duration(c.cfg.TimeoutMs)*time.Millisecond)
}

// Chat performs one synchronous round-trip (spec §4.3).
func (c *Client) Chat(ctx context.Context, messages []provider.Message, tools []provider.ToolDefinition) (*provider.ChatResponse, error) {
	req, err := c.provider.BuildRequest(c.requestParams(false), messages, tools)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.timeoutContext(ctx)
	defer cancel()
	req = req.WithContext(ctx)

	handle, err := c.pool.Acquire(ctx, originOf(req))
	if err != nil {
		return nil, err
	}

	resp, err := handle.Do(req)
	if err != nil {
		handle.Invalidate()
		c.pool.Release(handle)
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	c.pool.Release(handle)
	if err != nil {
		return nil, agenterr.Wrap(agenterr.Network, err, "read response body")
	}

	return c.provider.ParseResponse(resp.StatusCode, body)
}

// ChatStream performs a streaming round-trip, invoking onEvent for every
// normalized StreamEvent as it arrives and returning the fully accumulated
// ChatResponse once the stream ends. If onEvent returns Abort, the
// underlying HTTP transfer is torn down and ChatStream returns a
// CANCELLED error (spec §4.3, §8 scenario S6).
func (c *Client) ChatStream(ctx context.Context, messages []provider.Message, tools []provider.ToolDefinition, onEvent OnEvent) (*provider.ChatResponse, error) {
	req, err := c.provider.BuildRequest(c.requestParams(true), messages, tools)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.timeoutContext(ctx)
	defer cancel()
	req = req.WithContext(ctx)

	handle, err := c.pool.Acquire(ctx, originOf(req))
	if err != nil {
		return nil, err
	}

	resp, err := handle.Do(req)
	if err != nil {
		handle.Invalidate()
		c.pool.Release(handle)
		return nil, classifyTransportErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.pool.Release(handle)
		if _, parseErr := c.provider.ParseResponse(resp.StatusCode, body); parseErr != nil {
			return nil, parseErr
		}
		return nil, agenterr.New(agenterr.Backend, "http %d", resp.StatusCode)
	}

	parser := c.provider.NewStreamParser()
	acc := newAccumulator()

	buf := make([]byte, 4096)
	aborted := false
readLoop:
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			events, feedErr := parser.Feed(buf[:n])
			if feedErr != nil {
				handle.Invalidate()
				c.pool.Release(handle)
				return nil, agenterr.Wrap(agenterr.Backend, feedErr, "parse stream")
			}
			for _, ev := range events {
				acc.apply(ev)
				if onEvent != nil && onEvent(ev) == Abort {
					aborted = true
					break readLoop
				}
				if ev.Type == "message_stop" {
					break readLoop
				}
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			handle.Invalidate()
			c.pool.Release(handle)
			return nil, classifyTransportErr(readErr)
		}
	}

	c.pool.Release(handle)

	if aborted {
		slog.Debug("llm: stream aborted by callback")
		return nil, agenterr.New(agenterr.Cancelled, "stream aborted by caller")
	}

	return acc.result(), nil
}
