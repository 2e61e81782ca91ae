// Package scan composes admission control, validation, resolution, and
// probing into the single public scan operation. All validation happens
// before any socket is opened; probe failures never abort a scan.
package scan

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/portscope/portscope/internal/errors"
	"github.com/portscope/portscope/internal/logging"
	"github.com/portscope/portscope/internal/metrics"
	"github.com/portscope/portscope/internal/ports"
	"github.com/portscope/portscope/internal/probe"
	"github.com/portscope/portscope/internal/target"
)

// Admitter decides whether a client may run a scan right now.
type Admitter interface {
	Admit(clientID string) bool
	RetryAfter(clientID string) time.Duration
}

// TargetResolver validates a target and selects a public address for it.
type TargetResolver interface {
	Resolve(ctx context.Context, rawTarget string) (*target.ResolvedTarget, error)
}

// Prober probes a batch of ports on one address.
type Prober interface {
	CheckAll(ctx context.Context, address string, requested []int) []probe.PortResult
}

// Result is the immutable outcome of one successful scan.
type Result struct {
	ScanID    uuid.UUID          `json:"scan_id"`
	Target    string             `json:"target"`
	IP        string             `json:"ip"`
	Results   []probe.PortResult `json:"results"`
	Timestamp time.Time          `json:"timestamp"`
}

// Coordinator wires the scan pipeline together.
type Coordinator struct {
	limiter  Admitter
	resolver TargetResolver
	prober   Prober
	logger   *logging.Logger
	metrics  *metrics.Metrics
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the coordinator's logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics attaches a metrics instance.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// NewCoordinator creates a scan coordinator from its collaborators.
func NewCoordinator(limiter Admitter, resolver TargetResolver, prober Prober, opts ...Option) *Coordinator {
	c := &Coordinator{
		limiter:  limiter,
		resolver: resolver,
		prober:   prober,
		logger:   logging.Default().WithComponent("scan"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Scan runs the full pipeline for one request: admission, port
// validation, target resolution, then the probe batch. Port validation
// runs before resolution so malformed requests fail without a DNS
// round trip. Results keep the requested port order.
func (c *Coordinator) Scan(ctx context.Context, clientID, rawTarget string, requested []int) (*Result, error) {
	scanID := uuid.New()
	logger := c.logger.WithScanID(scanID.String())

	if !c.limiter.Admit(clientID) {
		retry := c.limiter.RetryAfter(clientID)
		logger.Warn("Scan denied by rate limiter",
			"client_id", clientID,
			"retry_after", retry)
		c.countError(errors.CodeRateLimited)
		if c.metrics != nil {
			c.metrics.IncrementRateLimited()
		}
		return nil, errors.ErrRateLimited(clientID).WithContext("retry_after", retry.String())
	}

	portSet, err := ports.Validate(requested)
	if err != nil {
		logger.Warn("Scan rejected: invalid port set",
			"client_id", clientID,
			"requested", len(requested),
			"error", err)
		c.countError(errors.GetCode(err))
		return nil, err
	}

	resolved, err := c.resolver.Resolve(ctx, rawTarget)
	if err != nil {
		logger.Warn("Scan rejected: invalid target",
			"client_id", clientID,
			"target", rawTarget,
			"error", err)
		c.countError(errors.GetCode(err))
		return nil, err
	}

	logger.InfoScan("Starting scan", resolved.Hostname,
		"client_id", clientID,
		"address", resolved.Address,
		"port_count", len(portSet))

	start := time.Now()
	if c.metrics != nil {
		done := c.metrics.ScanStarted()
		defer done()
	}

	results := c.prober.CheckAll(ctx, resolved.Address, portSet)

	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.RecordScanDuration(elapsed)
		c.metrics.IncrementScansTotal("completed")
	}

	open := 0
	for _, r := range results {
		if r.Status == probe.StatusOpen {
			open++
		}
	}
	logger.InfoScan("Scan completed", resolved.Hostname,
		"address", resolved.Address,
		"duration", elapsed,
		"ports_open", open,
		"ports_total", len(results))

	return &Result{
		ScanID:    scanID,
		Target:    resolved.Hostname,
		IP:        resolved.Address,
		Results:   results,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (c *Coordinator) countError(code errors.ErrorCode) {
	if c.metrics != nil {
		c.metrics.IncrementScanErrors(string(code))
		c.metrics.IncrementScansTotal("rejected")
	}
}
