package css

import (
	"maps"
	"slices"

	"github.com/maruel/natural"
)

// Stylesheet is an index of what stylesheet offers to rendered documents.
type Stylesheet struct {
	// Classes maps class name to number of rulesets mentioning it.
	Classes  map[string]int
	Imports  []string
	Rules    int
	Warnings []string
}

func newStylesheet() *Stylesheet {
	return &Stylesheet{Classes: make(map[string]int)}
}

// HasClass reports whether any rule selects elements by class name.
func (s *Stylesheet) HasClass(name string) bool {
	return s != nil && s.Classes[name] > 0
}

// ClassNames returns defined classes in natural order.
func (s *Stylesheet) ClassNames() []string {
	if s == nil {
		return nil
	}
	names := slices.Collect(maps.Keys(s.Classes))
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
	return names
}

// Merge adds everything other stylesheet defines, as if both were loaded
// into the same page.
func (s *Stylesheet) Merge(other *Stylesheet) {
	if other == nil {
		return
	}
	for name, n := range other.Classes {
		s.Classes[name] += n
	}
	s.Imports = append(s.Imports, other.Imports...)
	s.Rules += other.Rules
	s.Warnings = append(s.Warnings, other.Warnings...)
}

// Missing returns used classes no rule defines, each once, in order of
// first use.
func (s *Stylesheet) Missing(used []string) []string {
	var (
		out  []string
		seen = make(map[string]bool)
	)
	for _, name := range used {
		if seen[name] || s.HasClass(name) {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
