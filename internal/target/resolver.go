// Package target validates scan targets and resolves them to a usable
// public address. A target is either an IP literal, which must itself be
// public, or a DNS name, which must resolve to at least one public
// address. Everything else is rejected before a single socket opens.
package target

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/portscope/portscope/internal/classify"
	"github.com/portscope/portscope/internal/errors"
)

const (
	maxDomainLength = 253
	maxLabelLength  = 63

	defaultLookupTimeout = 5 * time.Second
)

// ResolvedTarget is a validated scan target. Address is always a public
// IPv4 or IPv6 literal; for IP-literal targets Hostname equals Address.
type ResolvedTarget struct {
	Hostname string `json:"hostname"`
	Address  string `json:"address"`
}

// LookupFunc returns the addresses a hostname resolves to, in resolver
// order. A and AAAA results are both included.
type LookupFunc func(ctx context.Context, host string) ([]string, error)

// Resolver validates targets and picks a public address for them.
type Resolver struct {
	lookup  LookupFunc
	timeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookup replaces the address lookup, mainly for tests.
func WithLookup(fn LookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = fn
	}
}

// WithDNSServer routes lookups through the given DNS server
// (host:port) instead of the system resolver.
func WithDNSServer(server string) Option {
	return func(r *Resolver) {
		if server != "" {
			r.lookup = dnsServerLookup(server)
		}
	}
}

// WithTimeout bounds each lookup.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// NewResolver creates a resolver using the system resolver unless an
// option overrides it.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookup:  systemLookup,
		timeout: defaultLookupTimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// systemLookup resolves through the OS resolver.
func systemLookup(ctx context.Context, host string) ([]string, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, a.IP.String())
	}
	return out, nil
}

// dnsServerLookup queries A then AAAA records against one explicit
// server, keeping answer order within each record type.
func dnsServerLookup(server string) LookupFunc {
	return func(ctx context.Context, host string) ([]string, error) {
		client := &dns.Client{}
		var out []string
		for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
			msg := new(dns.Msg)
			msg.SetQuestion(dns.Fqdn(host), qtype)
			msg.RecursionDesired = true

			reply, _, err := client.ExchangeContext(ctx, msg, server)
			if err != nil {
				// A failed AAAA round must not discard A answers.
				if len(out) > 0 {
					continue
				}
				return nil, err
			}
			for _, rr := range reply.Answer {
				switch rec := rr.(type) {
				case *dns.A:
					out = append(out, rec.A.String())
				case *dns.AAAA:
					out = append(out, rec.AAAA.String())
				}
			}
		}
		return out, nil
	}
}

// Resolve validates the target and returns it with a selected public
// address. Failures are always TARGET_INVALID scan errors; resolution
// problems never panic or surface as transport errors.
func (r *Resolver) Resolve(ctx context.Context, rawTarget string) (*ResolvedTarget, error) {
	t := strings.TrimSpace(rawTarget)
	if t == "" {
		return nil, errors.ErrInvalidTarget(rawTarget, "target is required")
	}
	if strings.EqualFold(t, "localhost") {
		return nil, errors.ErrInvalidTarget(t, "target is not allowed")
	}

	// IP literal: the literal itself must be public.
	if net.ParseIP(t) != nil {
		if classify.IsPrivate(t) {
			return nil, errors.ErrInvalidTarget(t, "target address is private or reserved")
		}
		return &ResolvedTarget{Hostname: t, Address: t}, nil
	}

	if !ValidDomain(t) {
		return nil, errors.ErrInvalidTarget(t, "target is not a valid domain name")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	addrs, err := r.lookup(ctx, t)
	if err != nil {
		return nil, errors.WrapScanErrorWithTarget(
			errors.CodeTargetInvalid, "target did not resolve", t, err)
	}

	// First public address in resolver order wins. The order is
	// resolver-dependent, which is accepted nondeterminism.
	for _, addr := range addrs {
		if classify.IsPublic(addr) {
			return &ResolvedTarget{Hostname: t, Address: addr}, nil
		}
	}

	return nil, errors.ErrInvalidTarget(t, "target has no public address")
}

// ValidDomain reports whether s has standard DNS name shape: at least
// two dot-joined labels of 1-63 letters, digits, or hyphens, with no
// label starting or ending in a hyphen.
func ValidDomain(s string) bool {
	if len(s) == 0 || len(s) > maxDomainLength {
		return false
	}

	labels := strings.Split(s, ".")
	if len(labels) < 2 {
		return false
	}

	for _, label := range labels {
		if !validLabel(label) {
			return false
		}
	}
	return true
}

func validLabel(label string) bool {
	if len(label) == 0 || len(label) > maxLabelLength {
		return false
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return false
	}
	for i := 0; i < len(label); i++ {
		c := label[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-':
		default:
			return false
		}
	}
	return true
}
