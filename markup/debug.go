package markup

import (
	"maps"
	"slices"

	"github.com/maruel/natural"

	"mkd/utils/debug"
)

func sortedNames[V any](m map[string]V) []string {
	return slices.SortedFunc(maps.Keys(m), func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})
}

// Names returns declared argument, tool and component names in natural
// order.
func (s *Symbols) Names() (args, tools, components []string) {
	if s == nil {
		return nil, nil, nil
	}
	return sortedNames(s.Args), sortedNames(s.Tools), sortedNames(s.Components)
}

// Dump returns human readable listing of symbol tables, names in natural
// order.
func (s *Symbols) Dump() string {
	tw := debug.NewTreeWriter()
	if s.Empty() {
		tw.Line(0, "no symbols")
		return tw.String()
	}
	if len(s.Args) > 0 {
		tw.Line(0, "args: %d", len(s.Args))
		for _, name := range sortedNames(s.Args) {
			a := s.Args[name]
			tw.Line(1, "%s", name)
			tw.TextBlock(2, "type", a.Type)
			tw.TextBlock(2, "desc", a.Desc)
		}
	}
	if len(s.Tools) > 0 {
		tw.Line(0, "tools: %d", len(s.Tools))
		for _, name := range sortedNames(s.Tools) {
			t := s.Tools[name]
			tw.Line(1, "%s", name)
			tw.TextBlock(2, "params", t.Params)
			tw.TextBlock(2, "args", t.Args)
			tw.TextBlock(2, "desc", t.Desc)
		}
	}
	if len(s.Components) > 0 {
		tw.Line(0, "components: %d", len(s.Components))
		for _, name := range sortedNames(s.Components) {
			c := s.Components[name]
			tw.Line(1, "%s", name)
			tw.TextBlock(2, "params", c.Params)
			tw.TextBlock(2, "tool", c.Tool)
			tw.TextBlock(2, "desc", c.Desc)
		}
	}
	return tw.String()
}

// DumpOutcomes lists settled generation directives.
func DumpOutcomes(outcomes []Outcome) string {
	tw := debug.NewTreeWriter()
	for _, o := range outcomes {
		status := "ok"
		if o.Err != nil {
			status = o.Err.Error()
		}
		tw.Line(0, "%s %s [%s] %s", o.ID, o.Kind, o.Bot, o.Elapsed)
		tw.TextBlock(1, "prompt", o.Prompt)
		tw.TextBlock(1, "status", status)
	}
	return tw.String()
}
