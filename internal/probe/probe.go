// Package probe performs single-shot TCP connect probes and classifies
// the outcome per port. A probe never fails: every error mode collapses
// into one of the three port statuses, so a batch can always produce a
// complete result set.
package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"sync"
	"syscall"
	"time"
)

// MinTimeout is the floor applied to every probe. Callers cannot request
// a faster timeout; the floor keeps the engine from being driven as an
// aggressive scanner.
const MinTimeout = time.Second

// DefaultTimeout is used when the engine is constructed without an
// explicit per-probe timeout.
const DefaultTimeout = time.Second

// Status is the classified outcome of a single port probe.
type Status string

const (
	// StatusOpen means the TCP handshake completed.
	StatusOpen Status = "open"
	// StatusClosed means the peer actively refused the connection.
	StatusClosed Status = "closed"
	// StatusFiltered means no definitive signal arrived before the
	// timeout, or the failure was ambiguous.
	StatusFiltered Status = "filtered"
)

// PortResult is the outcome of probing a single port. LatencyMS is set
// only when the port is open.
type PortResult struct {
	Port      int    `json:"port"`
	Status    Status `json:"status"`
	LatencyMS *int64 `json:"latency_ms,omitempty"`
}

// Engine executes TCP connect probes with a fixed per-probe timeout and
// bounded batch concurrency.
type Engine struct {
	timeout     time.Duration
	concurrency int
	dial        func(ctx context.Context, address string, timeout time.Duration) (net.Conn, error)
	observe     func(status Status, duration time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout sets the per-probe timeout. Values below MinTimeout are
// raised to the floor.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.timeout = d
	}
}

// WithConcurrency bounds how many probes of one batch run at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithObserver installs a callback invoked once per finished probe,
// typically to feed metrics.
func WithObserver(fn func(status Status, duration time.Duration)) Option {
	return func(e *Engine) {
		e.observe = fn
	}
}

// NewEngine creates a probe engine.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		timeout:     DefaultTimeout,
		concurrency: 0,
		dial:        dialTCP,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.timeout < MinTimeout {
		e.timeout = MinTimeout
	}
	return e
}

func dialTCP(ctx context.Context, address string, timeout time.Duration) (net.Conn, error) {
	d := net.Dialer{Timeout: timeout}
	return d.DialContext(ctx, "tcp", address)
}

// Check probes a single port with the given timeout and classifies the
// result. The timeout is floored at MinTimeout. No data is sent or read;
// an accepted connection is closed immediately.
func (e *Engine) Check(ctx context.Context, address string, port int, timeout time.Duration) PortResult {
	if timeout < MinTimeout {
		timeout = MinTimeout
	}

	addr := net.JoinHostPort(address, strconv.Itoa(port))
	start := time.Now()
	conn, err := e.dial(ctx, addr, timeout)
	elapsed := time.Since(start)
	if err == nil {
		latency := elapsed.Milliseconds()
		_ = conn.Close()
		e.observed(StatusOpen, elapsed)
		return PortResult{Port: port, Status: StatusOpen, LatencyMS: &latency}
	}

	status := classifyError(err)
	e.observed(status, elapsed)
	return PortResult{Port: port, Status: status}
}

func (e *Engine) observed(status Status, duration time.Duration) {
	if e.observe != nil {
		e.observe(status, duration)
	}
}

// classifyError maps a dial failure onto a port status. Only an active
// refusal counts as closed; timeouts and everything ambiguous degrade to
// filtered.
func classifyError(err error) Status {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return StatusClosed
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StatusFiltered
	}
	return StatusFiltered
}

// CheckAll probes every port in the requested order using the engine's
// configured timeout. Probes run concurrently up to the configured bound
// (at most one goroutine per requested port), each with an independent
// timeout, and the results are reassembled in request order. A slow or
// filtered probe never blocks or cancels its siblings.
func (e *Engine) CheckAll(ctx context.Context, address string, requested []int) []PortResult {
	results := make([]PortResult, len(requested))

	limit := e.concurrency
	if limit <= 0 || limit > len(requested) {
		limit = len(requested)
	}
	if limit < 1 {
		return results
	}

	sem := make(chan struct{}, limit)
	var wg sync.WaitGroup
	for i, port := range requested {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx, p int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[idx] = e.Check(ctx, address, p, e.timeout)
		}(i, port)
	}
	wg.Wait()

	return results
}

// Timeout returns the engine's per-probe timeout after flooring.
func (e *Engine) Timeout() time.Duration {
	return e.timeout
}
