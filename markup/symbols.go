package markup

import (
	"strings"

	"golang.org/x/net/html"

	"mkd/dialect"
)

// Arg is declared named argument.
type Arg struct {
	Name string
	Type string
	Desc string
}

// Tool is declared tool.
type Tool struct {
	Name   string
	Params string
	Args   string
	Desc   string
}

// Component is declared AI component, Tool is name of the tool it uses and
// may be empty.
type Component struct {
	Name   string
	Params string
	Tool   string
	Desc   string
}

// Symbols are declarations collected by a single render. Later declaration
// of the same name replaces earlier one.
type Symbols struct {
	Args       map[string]Arg
	Tools      map[string]Tool
	Components map[string]Component
}

func newSymbols() *Symbols {
	return &Symbols{
		Args:       make(map[string]Arg),
		Tools:      make(map[string]Tool),
		Components: make(map[string]Component),
	}
}

// Empty reports whether nothing was declared.
func (s *Symbols) Empty() bool {
	return s == nil || len(s.Args)+len(s.Tools)+len(s.Components) == 0
}

func (s *Symbols) declare(m dialect.Match) {
	name := strings.TrimSpace(m.Group("name"))
	switch m.Kind {
	case dialect.ArgDecl:
		s.Args[name] = Arg{
			Name: name,
			Type: m.Group("type"),
			Desc: strings.TrimSpace(m.Group("desc")),
		}
	case dialect.ToolDecl:
		s.Tools[name] = Tool{
			Name:   name,
			Params: strings.TrimSpace(m.Group("params")),
			Args:   strings.TrimSpace(m.Group("args")),
			Desc:   strings.TrimSpace(m.Group("desc")),
		}
	case dialect.AIDecl:
		s.Components[name] = Component{
			Name:   name,
			Params: strings.TrimSpace(m.Group("params")),
			Tool:   strings.TrimSpace(m.Group("tool")),
			Desc:   strings.TrimSpace(m.Group("desc")),
		}
	}
}

// chip renders re-invocation of known component. Parameters and tool given
// at the invocation win over declared ones.
func (s *Symbols) chip(m dialect.Match) (string, bool) {
	name := strings.TrimSpace(m.Group("name"))
	c, ok := s.Components[name]
	if !ok {
		return "", false
	}
	params := strings.TrimSpace(m.Group("params"))
	if params == "" {
		params = c.Params
	}
	tool := c.Tool
	if m.Has("tool") {
		tool = strings.TrimSpace(m.Group("tool"))
	}

	var b strings.Builder
	b.WriteString(`<div class="ai-component">`)
	b.WriteString(`<span class="ai-name">` + html.EscapeString(name) + `</span>`)
	b.WriteString(`<span class="ai-params">(` + html.EscapeString(params))
	if tool != "" {
		b.WriteString(", using " + html.EscapeString(tool))
	}
	b.WriteString(`)</span></div>`)
	return b.String(), true
}

// resolve returns replacement for {name} reference. Arguments take
// precedence over tools.
func (s *Symbols) resolve(ref string) (string, bool) {
	name := strings.TrimSpace(ref)
	if a, ok := s.Args[name]; ok {
		return `<span class="arg-reference">` + a.Desc + `</span>`, true
	}
	if t, ok := s.Tools[name]; ok {
		return html.EscapeString(t.Name), true
	}
	return "", false
}

// symbols runs declaration pass over held declaration slots, erasing them,
// then reference pass over component re-invocations and {name} references.
// Unknown names are left as written.
func (r *Renderer) symbols(b *buffer) *Symbols {
	syms := newSymbols()

	b.each(func(s *slot) {
		syms.declare(s.match)
		s.state, s.markup = stateFrozen, ""
	}, dialect.ArgDecl, dialect.ToolDecl, dialect.AIDecl)

	b.each(func(s *slot) {
		if chip, ok := syms.chip(s.match); ok {
			s.markup = chip
		}
		s.state = stateFrozen
	}, dialect.AIRef)

	b.replace(r.find(b.text, dialect.SymbolRef), func(m dialect.Match) string {
		if out, ok := syms.resolve(m.Group("name")); ok {
			return out
		}
		return m.Text(b.text)
	})
	return syms
}
