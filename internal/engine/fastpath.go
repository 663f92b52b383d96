package engine

import (
	"sort"

	"github.com/yourusername/deserialize-bench/internal/location"
)

// FastPathPolicy is the allow-list of location schemes whose files are read
// but never parsed. Such files always yield an empty document. The zero
// value exempts nothing.
type FastPathPolicy struct {
	schemes map[string]struct{}
}

// NewFastPathPolicy returns a policy exempting the given schemes. Scheme
// names are matched case-insensitively; empty names are ignored.
func NewFastPathPolicy(schemes ...string) FastPathPolicy {
	p := FastPathPolicy{schemes: make(map[string]struct{}, len(schemes))}
	for _, s := range schemes {
		s = location.NormalizeScheme(s)
		if s == "" {
			continue
		}
		p.schemes[s] = struct{}{}
	}
	return p
}

// DefaultFastPathPolicy exempts interactive-window notebooks.
func DefaultFastPathPolicy() FastPathPolicy {
	return NewFastPathPolicy(location.SchemeInteractive)
}

// Applies reports whether loc bypasses parsing.
func (p FastPathPolicy) Applies(loc location.Location) bool {
	if len(p.schemes) == 0 {
		return false
	}
	_, ok := p.schemes[location.NormalizeScheme(loc.Scheme)]
	return ok
}

// Schemes returns the exempted schemes in sorted order.
func (p FastPathPolicy) Schemes() []string {
	out := make([]string, 0, len(p.schemes))
	for s := range p.schemes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
