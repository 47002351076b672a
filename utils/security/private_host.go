package security

import (
	"net/netip"
	"strings"
)

// privateIPv4Ranges lists every IPv4 range the proxy refuses to fetch from.
// Covers loopback, RFC1918, CGN, link-local, benchmarking, documentation,
// multicast, and reserved space.
var privateIPv4Ranges = []netip.Prefix{
	netip.MustParsePrefix("0.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("100.64.0.0/10"),
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.0.0.0/24"),
	netip.MustParsePrefix("192.0.2.0/24"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("198.18.0.0/15"),
	netip.MustParsePrefix("198.51.100.0/24"),
	netip.MustParsePrefix("203.0.113.0/24"),
	netip.MustParsePrefix("224.0.0.0/4"),
	netip.MustParsePrefix("240.0.0.0/4"),
}

var uniqueLocalIPv6 = netip.MustParsePrefix("fc00::/7")
var linkLocalIPv6 = netip.MustParsePrefix("fe80::/10")

// IsPrivateHost reports whether the hostname must never be fetched from:
// localhost, internal DNS suffixes, or any literal IP inside a private,
// reserved, or link-local range.
func IsPrivateHost(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))

	if hostname == "localhost" {
		return true
	}
	if strings.HasSuffix(hostname, ".local") || strings.HasSuffix(hostname, ".internal") {
		return true
	}

	// Strict IPv4 first: the standard parsers accept forms (leading zeros,
	// octal, integer) that firewalls and allowlists disagree on.
	if looksLikeIPv4(hostname) {
		addr, ok := parseStrictIPv4(hostname)
		if !ok {
			// An IPv4-shaped hostname that fails strict parsing is treated
			// as private rather than be given the benefit of the doubt.
			return true
		}
		return isPrivateIPv4(addr)
	}

	if addr, err := netip.ParseAddr(hostname); err == nil {
		return isPrivateAddr(addr)
	}

	return false
}

func isPrivateAddr(addr netip.Addr) bool {
	if addr.Is4In6() {
		return isPrivateIPv4(addr.Unmap())
	}
	if addr.Is4() {
		return isPrivateIPv4(addr)
	}
	if addr.IsLoopback() || addr.IsUnspecified() {
		return true
	}
	return uniqueLocalIPv6.Contains(addr) || linkLocalIPv6.Contains(addr)
}

func isPrivateIPv4(addr netip.Addr) bool {
	for _, prefix := range privateIPv4Ranges {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// looksLikeIPv4 reports whether the hostname is four dot-separated groups of
// digits. Anything of that shape must pass the strict parser.
func looksLikeIPv4(hostname string) bool {
	parts := strings.Split(hostname, ".")
	if len(parts) != 4 {
		return false
	}
	for _, part := range parts {
		if part == "" {
			return false
		}
		for _, c := range part {
			if c < '0' || c > '9' {
				return false
			}
		}
	}
	return true
}

// parseStrictIPv4 parses dotted-decimal IPv4 rejecting leading-zero octets,
// closing the classic octal-interpretation bypass (e.g. 0177.0.0.1).
func parseStrictIPv4(hostname string) (netip.Addr, bool) {
	parts := strings.Split(hostname, ".")
	if len(parts) != 4 {
		return netip.Addr{}, false
	}
	var octets [4]byte
	for i, part := range parts {
		if len(part) == 0 || len(part) > 3 {
			return netip.Addr{}, false
		}
		if len(part) > 1 && part[0] == '0' {
			return netip.Addr{}, false
		}
		n := 0
		for _, c := range part {
			n = n*10 + int(c-'0')
		}
		if n > 255 {
			return netip.Addr{}, false
		}
		octets[i] = byte(n)
	}
	return netip.AddrFrom4(octets), true
}
