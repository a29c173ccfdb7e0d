// Package rules evaluates ordered access-control rules. The first rule
// whose subject, share, path and client IP all match decides the
// outcome; no matching rule means deny.
package rules

import (
	"net/netip"
	"strings"

	"github.com/nh3bh3/cuthttp/internal/server/config"
	"github.com/nh3bh3/cuthttp/internal/server/fserr"
	"github.com/nh3bh3/cuthttp/internal/server/ipfilter"
)

// Op is an operation class.
type Op uint8

const (
	OpRead Op = 1 << iota
	OpWrite
	OpDelete
)

func (o Op) String() string {
	switch o {
	case OpRead:
		return "R"
	case OpWrite:
		return "W"
	case OpDelete:
		return "D"
	}
	return "?"
}

func ParseOp(s string) (Op, bool) {
	switch s {
	case "R":
		return OpRead, true
	case "W":
		return OpWrite, true
	case "D":
		return OpDelete, true
	}
	return 0, false
}

type rule struct {
	who     string
	allow   Op // bit set
	roots   []string
	paths   []string
	ipAllow []netip.Prefix
	ipDeny  []netip.Prefix
}

// Engine is immutable once built; reloads build a new Engine and swap
// the whole snapshot.
type Engine struct {
	rules []rule
}

func New(configured []config.Rule, dynamic []config.Rule) (*Engine, error) {
	e := &Engine{}
	for _, c := range append(append([]config.Rule{}, configured...), dynamic...) {
		r := rule{
			who:   c.Who,
			roots: c.Roots,
			paths: c.Paths,
		}
		if len(r.paths) == 0 {
			r.paths = []string{"/"}
		}

		for _, s := range c.Allow {
			op, ok := ParseOp(s)
			if !ok {
				return nil, fserr.New(fserr.KindConfigInvalid, "rule for '%s': unknown operation '%s'", c.Who, s)
			}
			r.allow |= op
		}

		var err error
		r.ipAllow, err = ipfilter.ParsePrefixes(c.IpAllow)
		if err != nil {
			return nil, fserr.Wrap(fserr.KindConfigInvalid, "rule for '"+c.Who+"'", err)
		}
		r.ipDeny, err = ipfilter.ParsePrefixes(c.IpDeny)
		if err != nil {
			return nil, fserr.Wrap(fserr.KindConfigInvalid, "rule for '"+c.Who+"'", err)
		}

		e.rules = append(e.rules, r)
	}
	return e, nil
}

// Authorize returns nil when user may perform op on (root, rel) from
// ip, or a Forbidden error naming the reason.
func (e *Engine) Authorize(user string, root string, rel string, op Op, ip netip.Addr) error {
	for i := range e.rules {
		r := &e.rules[i]
		if !r.matches(user, root, rel, ip) {
			continue
		}
		if r.allow&op == 0 {
			return fserr.New(fserr.KindForbidden, "operation %s not allowed", op)
		}
		return nil
	}
	return fserr.New(fserr.KindForbidden, "no access rule matches")
}

func (r *rule) matches(user, root, rel string, ip netip.Addr) bool {
	if r.who != "*" && r.who != user {
		return false
	}
	if !matchRoot(r.roots, root) {
		return false
	}
	if !matchPath(r.paths, rel) {
		return false
	}
	if len(r.ipAllow) != 0 && !ipfilter.MatchAny(r.ipAllow, ip) {
		return false
	}
	if ipfilter.MatchAny(r.ipDeny, ip) {
		return false
	}
	return true
}

func matchRoot(roots []string, root string) bool {
	for _, r := range roots {
		if r == "*" || r == root {
			return true
		}
	}
	return false
}

func matchPath(paths []string, rel string) bool {
	p := "/" + strings.TrimPrefix(strings.ReplaceAll(rel, "\\", "/"), "/")
	for _, allowed := range paths {
		allowed = strings.ReplaceAll(allowed, "\\", "/")
		if allowed == "*" || allowed == "/*" || allowed == "/" {
			return true
		}
		if !strings.HasPrefix(allowed, "/") {
			allowed = "/" + allowed
		}
		if p == allowed {
			return true
		}
		if strings.HasSuffix(allowed, "/") {
			if strings.HasPrefix(p, allowed) {
				return true
			}
		} else if strings.HasPrefix(p, allowed+"/") {
			return true
		}
	}
	return false
}

// AccessibleRoots lists the share names the user could reach with at
// least one operation from ip, used by the session endpoint.
func (e *Engine) AccessibleRoots(user string, shareNames []string, ip netip.Addr) []string {
	var out []string
	for _, name := range shareNames {
		for i := range e.rules {
			r := &e.rules[i]
			if r.allow != 0 && r.matches(user, name, "/", ip) {
				out = append(out, name)
				break
			}
		}
	}
	return out
}
