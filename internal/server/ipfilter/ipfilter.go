// Package ipfilter evaluates CIDR allow/deny lists. The policy is:
// allowed = (allow list empty OR ip in allow list) AND ip not in deny
// list.
package ipfilter

import (
	"fmt"
	"net/netip"

	"github.com/nh3bh3/cuthttp/internal/server/config"
)

type Filter struct {
	allow []netip.Prefix
	deny  []netip.Prefix
}

func New(c config.IPFilter) (*Filter, error) {
	allow, err := ParsePrefixes(c.Allow)
	if err != nil {
		return nil, err
	}
	deny, err := ParsePrefixes(c.Deny)
	if err != nil {
		return nil, err
	}
	return &Filter{allow: allow, deny: deny}, nil
}

// ParsePrefixes accepts CIDR notation, single addresses (treated as
// /32 or /128) and the wildcard "*" (both zero prefixes).
func ParsePrefixes(list []string) ([]netip.Prefix, error) {
	var out []netip.Prefix
	for _, s := range list {
		if s == "*" {
			out = append(out,
				netip.PrefixFrom(netip.IPv4Unspecified(), 0),
				netip.PrefixFrom(netip.IPv6Unspecified(), 0))
			continue
		}
		if p, err := netip.ParsePrefix(s); err == nil {
			out = append(out, p.Masked())
			continue
		}
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("bad CIDR or address '%s': %w", s, err)
		}
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// MatchAny reports whether ip is covered by any prefix. IPv4-mapped
// IPv6 addresses are unmapped first so mixed-family lists behave.
func MatchAny(prefixes []netip.Prefix, ip netip.Addr) bool {
	ip = ip.Unmap()
	for _, p := range prefixes {
		if p.Addr().Is4() == ip.Is4() && p.Contains(ip) {
			return true
		}
	}
	return false
}

// Check reports whether ip may pass the filter.
func (f *Filter) Check(ip netip.Addr) bool {
	if !ip.IsValid() {
		return false
	}
	if len(f.allow) != 0 && !MatchAny(f.allow, ip) {
		return false
	}
	return !MatchAny(f.deny, ip)
}
