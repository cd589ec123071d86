package admission

import (
	"sort"
	"strings"
	"time"
)

// Policy is one route's admission budget. Policies are immutable once
// loaded and resolved once per request.
type Policy struct {
	Pattern string
	Limit   int
	Window  time.Duration
}

// Table maps request paths to policies. It is built once at startup from
// declarative config entries and is safe for concurrent readers; nothing
// mutates it afterwards.
//
// Resolution order: exact pattern match, then the longest matching
// prefix, then the default policy. The longest-prefix rule makes
// overlapping overrides ("/api/v1/agent" and "/api/v1/agent/debate")
// resolve deterministically.
type Table struct {
	def      Policy
	exact    map[string]Policy
	prefixes []Policy // sorted by decreasing pattern length
	exempt   []string // trailing slashes stripped
}

// NewTable builds a policy table with the given default budget, per-route
// limit overrides (sharing the default window), and exempt paths. An
// exempt entry matches its path exactly and everything below it.
func NewTable(defaultLimit int, window time.Duration, routes map[string]int, exempt []string) *Table {
	t := &Table{
		def:   Policy{Limit: defaultLimit, Window: window},
		exact: make(map[string]Policy, len(routes)),
	}

	for pattern, limit := range routes {
		p := Policy{Pattern: pattern, Limit: limit, Window: window}
		t.exact[pattern] = p
		t.prefixes = append(t.prefixes, p)
	}

	sort.Slice(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].Pattern) > len(t.prefixes[j].Pattern)
	})

	for _, path := range exempt {
		t.exempt = append(t.exempt, strings.TrimSuffix(path, "/"))
	}

	return t
}

// Resolve returns the policy governing route.
func (t *Table) Resolve(route string) Policy {
	if p, ok := t.exact[route]; ok {
		return p
	}

	// Prefixes are sorted longest first, so the first hit wins.
	for _, p := range t.prefixes {
		if strings.HasPrefix(route, p.Pattern) {
			return p
		}
	}

	return t.def
}

// IsExempt reports whether route bypasses admission control entirely.
// A route is exempt when it equals an exempt path or starts with an
// exempt path followed by "/".
func (t *Table) IsExempt(route string) bool {
	for _, e := range t.exempt {
		if route == e || strings.HasPrefix(route, e+"/") {
			return true
		}
	}
	return false
}

// Default returns the fallback policy for unmapped routes.
func (t *Table) Default() Policy {
	return t.def
}

// Routes returns a copy of the per-route limit overrides.
func (t *Table) Routes() map[string]int {
	routes := make(map[string]int, len(t.exact))
	for pattern, p := range t.exact {
		routes[pattern] = p.Limit
	}
	return routes
}
