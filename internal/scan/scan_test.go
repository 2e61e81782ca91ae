package scan

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/portscope/portscope/internal/errors"
	"github.com/portscope/portscope/internal/metrics"
	"github.com/portscope/portscope/internal/probe"
	"github.com/portscope/portscope/internal/target"
)

type stubAdmitter struct {
	allow      bool
	retryAfter time.Duration
	calls      []string
}

func (s *stubAdmitter) Admit(clientID string) bool {
	s.calls = append(s.calls, clientID)
	return s.allow
}

func (s *stubAdmitter) RetryAfter(string) time.Duration { return s.retryAfter }

type stubResolver struct {
	resolved *target.ResolvedTarget
	err      error
	calls    []string
}

func (s *stubResolver) Resolve(_ context.Context, rawTarget string) (*target.ResolvedTarget, error) {
	s.calls = append(s.calls, rawTarget)
	if s.err != nil {
		return nil, s.err
	}
	return s.resolved, nil
}

type stubProber struct {
	results []probe.PortResult
	gotAddr string
	gotSet  []int
}

func (s *stubProber) CheckAll(_ context.Context, address string, requested []int) []probe.PortResult {
	s.gotAddr = address
	s.gotSet = append([]int(nil), requested...)
	if s.results != nil {
		return s.results
	}
	out := make([]probe.PortResult, len(requested))
	for i, p := range requested {
		out[i] = probe.PortResult{Port: p, Status: probe.StatusFiltered}
	}
	return out
}

func newTestCoordinator(adm *stubAdmitter, res *stubResolver, prb *stubProber) *Coordinator {
	return NewCoordinator(adm, res, prb, WithMetrics(metrics.New()))
}

func TestScanHappyPath(t *testing.T) {
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{resolved: &target.ResolvedTarget{Hostname: "example.com", Address: "93.184.216.34"}}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	before := time.Now().UTC()
	result, err := c.Scan(context.Background(), "client-a", "example.com", []int{80, 443})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEqual(t, uuid.Nil, result.ScanID)
	assert.Equal(t, "example.com", result.Target)
	assert.Equal(t, "93.184.216.34", result.IP)
	assert.Equal(t, "93.184.216.34", prb.gotAddr)
	assert.Equal(t, []int{80, 443}, prb.gotSet)
	require.Len(t, result.Results, 2)
	assert.Equal(t, 80, result.Results[0].Port)
	assert.Equal(t, 443, result.Results[1].Port)

	assert.False(t, result.Timestamp.Before(before))
	assert.Equal(t, time.UTC, result.Timestamp.Location())
}

func TestScanRateLimited(t *testing.T) {
	adm := &stubAdmitter{allow: false, retryAfter: 7 * time.Second}
	res := &stubResolver{}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	result, err := c.Scan(context.Background(), "client-a", "example.com", []int{80})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.IsCode(err, errors.CodeRateLimited))

	// A denied request must not touch the resolver or prober.
	assert.Empty(t, res.calls)
	assert.Empty(t, prb.gotSet)
}

func TestScanInvalidPortsBeforeResolution(t *testing.T) {
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{resolved: &target.ResolvedTarget{Hostname: "example.com", Address: "93.184.216.34"}}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	_, err := c.Scan(context.Background(), "client-a", "example.com", []int{80, 9999})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePortsInvalid))

	// Port validation fails fast, no DNS lookup happens.
	assert.Empty(t, res.calls)
}

func TestScanInvalidTarget(t *testing.T) {
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{err: errors.ErrInvalidTarget("10.0.0.5", "address is private")}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	_, err := c.Scan(context.Background(), "client-a", "10.0.0.5", []int{80})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeTargetInvalid))
	assert.Empty(t, prb.gotSet)
}

func TestScanDeduplicatesPorts(t *testing.T) {
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{resolved: &target.ResolvedTarget{Hostname: "example.com", Address: "93.184.216.34"}}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	result, err := c.Scan(context.Background(), "client-a", "example.com", []int{443, 80, 443, 80})
	require.NoError(t, err)

	assert.Equal(t, []int{443, 80}, prb.gotSet)
	require.Len(t, result.Results, 2)
}

func TestScanAdmissionConsumedEvenOnInvalidPorts(t *testing.T) {
	// The limiter slot is spent before validation, so a malformed
	// request still counts against the window.
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{}
	prb := &stubProber{}
	c := newTestCoordinator(adm, res, prb)

	_, err := c.Scan(context.Background(), "client-a", "example.com", nil)
	require.Error(t, err)
	assert.Equal(t, []string{"client-a"}, adm.calls)
}

func TestScanWorksWithoutMetrics(t *testing.T) {
	adm := &stubAdmitter{allow: true}
	res := &stubResolver{resolved: &target.ResolvedTarget{Hostname: "example.com", Address: "93.184.216.34"}}
	prb := &stubProber{}
	c := NewCoordinator(adm, res, prb)

	result, err := c.Scan(context.Background(), "client-a", "example.com", []int{22})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
}
