package dialect

import (
	"regexp"
	"strings"
)

// ScanFunc finds occurrences a regular expression cannot describe. Returned
// matches must be ordered and must not overlap, Kind and Dialect are filled
// by the caller.
type ScanFunc func(text string) []Match

// Rule recognizes a single directive kind in a single dialect.
type Rule struct {
	// Marker is literal text every occurrence contains, used for quick
	// rejection and in diagnostics.
	Marker  string
	pattern *regexp.Regexp
	scan    ScanFunc
}

// Pattern builds rule from regular expression with named groups.
func Pattern(marker, expr string) *Rule {
	return &Rule{Marker: marker, pattern: regexp.MustCompile(expr)}
}

// Scanner builds rule from hand written scanner.
func Scanner(marker string, fn ScanFunc) *Rule {
	return &Rule{Marker: marker, scan: fn}
}

func (r *Rule) String() string {
	if r.pattern != nil {
		return r.pattern.String()
	}
	return "scan(" + r.Marker + ")"
}

func (r *Rule) find(text string) []Match {
	if r.Marker != "" && !strings.Contains(text, r.Marker) {
		return nil
	}
	if r.scan != nil {
		return r.scan(text)
	}

	locs := r.pattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil
	}
	names := r.pattern.SubexpNames()
	out := make([]Match, 0, len(locs))
	for _, loc := range locs {
		m := Match{Start: loc[0], End: loc[1], Groups: make(map[string]string)}
		for i, name := range names {
			if name == "" || loc[2*i] < 0 {
				continue
			}
			m.Groups[name] = text[loc[2*i]:loc[2*i+1]]
		}
		out = append(out, m)
	}
	return out
}

const variationSelector = '\uFE0F'

// glyphs turns emoji marker into expression which tolerates missing
// variation selectors, editors are inconsistent about emitting them.
func glyphs(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r == variationSelector {
			continue
		}
		b.WriteString(regexp.QuoteMeta(string(r)))
		b.WriteString(`\x{FE0F}?`)
	}
	return b.String()
}
