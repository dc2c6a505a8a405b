// Package pool implements the bounded, origin-keyed HTTP connection pool
// described in spec §4.1: issuing request/response and SSE-streaming HTTP
// calls over a capacity-limited set of reusable transports.
package pool

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/corebridge/agentcore/agenterr"
)

// TLSConfig mirrors the reference httpclient package's TLS options: a
// custom CA bundle and an insecure-skip-verify escape hatch for dev/test.
type TLSConfig struct {
	InsecureSkipVerify bool
	CACertificate      string
}

func configureTransport(cfg *TLSConfig) (*http.Transport, error) {
	transport := &http.Transport{TLSClientConfig: &tls.Config{}}
	if cfg == nil {
		return transport, nil
	}
	if cfg.CACertificate != "" {
		caCert, err := os.ReadFile(cfg.CACertificate)
		if err != nil {
			return nil, agenterr.Wrap(agenterr.TLS, err, "read CA certificate %s", cfg.CACertificate)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caCert) {
			return nil, agenterr.New(agenterr.TLS, "parse CA certificate %s", cfg.CACertificate)
		}
		transport.TLSClientConfig.RootCAs = pool
	}
	if cfg.InsecureSkipVerify {
		slog.Warn("pool: TLS certificate verification disabled", "reason", "InsecureSkipVerify")
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	return transport, nil
}

// Config configures a Pool.
type Config struct {
	// Capacity bounds the number of live (non-idle) handles the pool will
	// construct before it starts blocking acquirers.
	Capacity int
	// AcquireTimeout bounds how long Acquire blocks once the pool is at
	// capacity before returning POOL_EXHAUSTED.
	AcquireTimeout time.Duration
	TLS            *TLSConfig

	// MaxRetries, BaseDelay, and MaxDelay bound the pool's retry of
	// transport-level errors (connection reset, timeout) on idempotent GET
	// requests, mirroring the reference httpclient package's exponential
	// backoff with jitter. Non-idempotent requests (POST, as every LLM chat
	// call is) are never retried at this layer: RATE_LIMIT/SERVER/AUTH
	// responses are surfaced to the caller as-is.
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = 8
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 2
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 100 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 2 * time.Second
	}
	return c
}

// retryConfig is the subset of Config that doWithRetry needs, copied onto
// each Handle so retries don't need to reach back into the Pool.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Stats is a point-in-time snapshot of pool utilization (spec §3, §8.4).
type Stats struct {
	Active   int
	Capacity int
	Hits     int
	Misses   int
}

// Handle is a leased transport bound to a single origin. Callers must
// Release it back to the Pool when done.
type Handle struct {
	origin  string
	client  *http.Client
	healthy bool
	retry   retryConfig
}

// Do issues req (whose URL must belong to this handle's origin) using the
// leased client. GET requests are retried on transport-level errors per
// h.retry; every other method (all LLM chat calls are POST) is issued once.
func (h *Handle) Do(req *http.Request) (*http.Response, error) {
	if req.Method != http.MethodGet {
		return h.client.Do(req)
	}
	return doWithRetry(h.client, req, h.retry)
}

// doWithRetry retries a GET request up to cfg.maxRetries times on a
// transport-level error, waiting an exponentially increasing, jittered
// delay between attempts (grounded in the reference httpclient package's
// calculateDelay, restricted here to idempotent requests and transport
// errors only).
func doWithRetry(client *http.Client, req *http.Request, cfg retryConfig) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		resp, err := client.Do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if attempt == cfg.maxRetries {
			break
		}

		delay := backoffDelay(cfg, attempt)
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return nil, lastErr
}

func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * cfg.baseDelay
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
	if d := delay + jitter; cfg.maxDelay <= 0 || d <= cfg.maxDelay {
		return d
	}
	return cfg.maxDelay
}

// Pool is a bounded, origin-keyed cache of idle HTTP transports. It is an
// explicit, caller-owned value rather than a hidden process-global, per
// spec §9's guidance to avoid hidden globals in a rewrite; InitShared and
// ShutdownShared provide an opt-in, reference-counted process-wide instance for callers that want
// the literal singleton behavior described in §4.1.
type Pool struct {
	cfg Config

	mu         sync.Mutex
	idle       map[string][]*Handle
	active     int
	hits       int
	misses     int
	waitNotify chan struct{} // closed and replaced whenever capacity may have freed up
}

// New constructs a Pool with the given configuration.
func New(cfg Config) *Pool {
	return &Pool{
		cfg:        cfg.withDefaults(),
		idle:       make(map[string][]*Handle),
		waitNotify: make(chan struct{}),
	}
}

// Acquire returns a Handle bound to origin, blocking up to the pool's
// AcquireTimeout (or until ctx is done) if the pool is at capacity and no
// idle handle is available.
func (p *Pool) Acquire(ctx context.Context, origin string) (*Handle, error) {
	if origin == "" {
		return nil, agenterr.New(agenterr.InvalidArg, "origin must not be empty")
	}

	deadline := time.Now().Add(p.cfg.AcquireTimeout)

	for {
		p.mu.Lock()
		if bucket := p.idle[origin]; len(bucket) > 0 {
			h := bucket[len(bucket)-1]
			p.idle[origin] = bucket[:len(bucket)-1]
			p.active++
			p.hits++
			p.mu.Unlock()
			return h, nil
		}

		if p.active < p.cfg.Capacity {
			p.active++
			p.misses++
			p.mu.Unlock()
			transport, err := configureTransport(p.cfg.TLS)
			if err != nil {
				p.mu.Lock()
				p.active--
				p.mu.Unlock()
				return nil, err
			}
			return &Handle{
				origin:  origin,
				client:  &http.Client{Transport: transport},
				healthy: true,
				retry: retryConfig{
					maxRetries: p.cfg.MaxRetries,
					baseDelay:  p.cfg.BaseDelay,
					maxDelay:   p.cfg.MaxDelay,
				},
			}, nil
		}

		notify := p.waitNotify
		p.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, agenterr.New(agenterr.PoolExhausted, "no handle available for origin %s within %s", origin, p.cfg.AcquireTimeout)
		}

		select {
		case <-notify:
			// capacity or idle state may have changed; loop and recheck
		case <-ctx.Done():
			return nil, agenterr.Wrap(agenterr.Cancelled, ctx.Err(), "acquire cancelled for origin %s", origin)
		case <-time.After(remaining):
			return nil, agenterr.New(agenterr.PoolExhausted, "no handle available for origin %s within %s", origin, p.cfg.AcquireTimeout)
		}
	}
}

// Release returns h to the idle pool if healthy, otherwise drops it,
// freeing a capacity slot either way.
func (p *Pool) Release(h *Handle) {
	if h == nil {
		return
	}
	p.mu.Lock()
	p.active--
	if h.healthy {
		p.idle[h.origin] = append(p.idle[h.origin], h)
	}
	old := p.waitNotify
	p.waitNotify = make(chan struct{})
	p.mu.Unlock()
	close(old)
}

// Invalidate marks h unhealthy so a subsequent Release drops it instead of
// returning it to the idle cache. Call this after a transport-level error.
func (h *Handle) Invalidate() { h.healthy = false }

// Stats returns a snapshot of current pool utilization.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Active:   p.active,
		Capacity: p.cfg.Capacity,
		Hits:     p.hits,
		Misses:   p.misses,
	}
}

// Shutdown closes the idle connections of every idle handle and clears the
// idle cache. Handles currently leased are not affected.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for origin, bucket := range p.idle {
		for _, h := range bucket {
			h.client.CloseIdleConnections()
		}
		delete(p.idle, origin)
	}
}

var (
	sharedMu   sync.Mutex
	sharedPool *Pool
	sharedRefs int
)

// InitShared increments the reference count on a process-wide Pool,
// constructing it on the first call with cfg. This reproduces the
// reference-counted process-wide pool literally described in spec §4.1 for
// callers that want it; most code should prefer an explicit New(cfg) value.
func InitShared(cfg Config) *Pool {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedPool == nil {
		sharedPool = New(cfg)
	}
	sharedRefs++
	return sharedPool
}

// ShutdownShared decrements the reference count, tearing the shared Pool
// down once it reaches zero.
func ShutdownShared() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedPool == nil {
		return
	}
	sharedRefs--
	if sharedRefs <= 0 {
		sharedPool.Shutdown()
		sharedPool = nil
		sharedRefs = 0
	}
}

// ErrString is a convenience for tests/log lines wanting a stable message
// for a pool-exhaustion error without importing agenterr directly.
func ErrString(err error) string {
	return fmt.Sprintf("%v", err)
}
