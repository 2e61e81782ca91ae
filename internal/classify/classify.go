// Package classify decides whether a resolved address may be probed.
// Anything that is not a well-formed public unicast address is treated
// as private: the classifier fails closed so that an unparseable or
// ambiguous address can never reach the probe engine.
package classify

import (
	"net/netip"
)

// Private IPv4 ranges. 0.0.0.0/8 covers the unspecified address and
// "this network" addresses that must never be dialed.
var privateV4 = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
}

// Private IPv6 ranges: loopback, link-local, and unique-local.
var privateV6 = []netip.Prefix{
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fe80::/10"),
	netip.MustParsePrefix("fc00::/7"),
}

// IsPrivate reports whether the given address string must be rejected
// for scanning. Malformed input, the empty string, and any address in a
// private, loopback, link-local, unique-local, or unspecified range all
// return true.
func IsPrivate(address string) bool {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return true
	}

	// Classify IPv4-mapped IPv6 addresses by their embedded IPv4 part
	// so ::ffff:10.0.0.1 cannot sneak past the v4 ranges.
	addr = addr.Unmap()

	if addr.IsUnspecified() {
		return true
	}

	if addr.Is4() {
		for _, p := range privateV4 {
			if p.Contains(addr) {
				return true
			}
		}
		return false
	}

	for _, p := range privateV6 {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// IsPublic is the complement of IsPrivate for readability at call sites.
func IsPublic(address string) bool {
	return !IsPrivate(address)
}
