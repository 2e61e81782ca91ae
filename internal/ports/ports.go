// Package ports validates and normalizes requested port sets against the
// fixed allow-list of scannable service ports.
package ports

import (
	"fmt"

	"github.com/portscope/portscope/internal/errors"
)

// MaxPerScan is the largest number of distinct ports a single scan may
// request.
const MaxPerScan = 20

// Allowed is the fixed set of well-known service ports permitted for
// scanning, in canonical display order.
var Allowed = []int{21, 22, 25, 53, 80, 110, 143, 443, 465, 587, 993, 995, 8080}

var allowedSet = func() map[int]struct{} {
	s := make(map[int]struct{}, len(Allowed))
	for _, p := range Allowed {
		s[p] = struct{}{}
	}
	return s
}()

// IsAllowed reports whether a single port is on the allow-list.
func IsAllowed(port int) bool {
	_, ok := allowedSet[port]
	return ok
}

// Validate normalizes a requested port sequence into a valid port set.
// Duplicates are dropped preserving first-occurrence order. The result
// must be non-empty, contain at most MaxPerScan entries, and every
// member must be allow-listed; otherwise a PORTS_INVALID error is
// returned. Validate is idempotent on its own output.
func Validate(requested []int) ([]int, error) {
	if len(requested) == 0 {
		return nil, errors.ErrInvalidPorts("no ports requested")
	}

	seen := make(map[int]struct{}, len(requested))
	deduped := make([]int, 0, len(requested))
	for _, p := range requested {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		deduped = append(deduped, p)
	}

	if len(deduped) > MaxPerScan {
		return nil, errors.ErrInvalidPorts(
			fmt.Sprintf("too many ports: %d requested, maximum is %d", len(deduped), MaxPerScan))
	}

	for _, p := range deduped {
		if !IsAllowed(p) {
			return nil, errors.ErrInvalidPorts(fmt.Sprintf("port %d is not allowed", p))
		}
	}

	return deduped, nil
}
