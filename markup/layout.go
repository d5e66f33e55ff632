package markup

import (
	"strings"

	"golang.org/x/net/html"

	"mkd/dialect"
)

// block is a node of layout tree: either a plain line or a container with
// nested nodes.
type block struct {
	line     string
	class    string
	indent   string
	children []block
	isLayout bool
}

// opener reports whether the whole line opens a layout block in any
// enabled dialect.
func (r *Renderer) opener(line string) (dialect.Match, bool) {
	ms := r.find(line, dialect.Layout)
	if len(ms) != 1 || ms[0].Start != 0 || ms[0].End != len(line) {
		return dialect.Match{}, false
	}
	return ms[0], true
}

// parseBlocks recognizes layout blocks in lines. Block body is every
// following line which is blank or indented deeper than the opener, trailing
// blank lines excluded. Body is dedented and parsed the same way, so nesting
// is limited only by input.
func (r *Renderer) parseBlocks(lines []string) []block {
	var nodes []block
	for i := 0; i < len(lines); {
		m, ok := r.opener(lines[i])
		if !ok {
			nodes = append(nodes, block{line: lines[i]})
			i++
			continue
		}
		indent := m.Group("indent")
		end := i + 1
		for j := i + 1; j < len(lines); j++ {
			if isBlank(lines[j]) {
				continue
			}
			if len(indentOf(lines[j])) <= len(indent) {
				break
			}
			end = j + 1
		}
		nodes = append(nodes, block{
			isLayout: true,
			class:    strings.TrimSpace(m.Group("class")),
			indent:   indent,
			children: r.parseBlocks(dedent(lines[i+1 : end])),
		})
		i = end
	}
	return nodes
}

// dedent strips indentation common to all non blank lines.
func dedent(lines []string) []string {
	common := -1
	for _, l := range lines {
		if isBlank(l) {
			continue
		}
		if n := len(indentOf(l)); common < 0 || n < common {
			common = n
		}
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		if isBlank(l) {
			continue
		}
		out[i] = l[common:]
	}
	return out
}

func renderBlocks(nodes []block, out []string) []string {
	for _, n := range nodes {
		if !n.isLayout {
			out = append(out, n.line)
			continue
		}
		out = append(out, n.indent+`<div class="`+html.EscapeString(n.class)+`">`)
		for _, l := range renderBlocks(n.children, nil) {
			if l == "" {
				out = append(out, l)
				continue
			}
			out = append(out, n.indent+"  "+l)
		}
		out = append(out, n.indent+"</div>")
	}
	return out
}

// layouts recognizes both dialects in a single pass, so blocks written in
// different dialects nest into each other.
func (r *Renderer) layouts(b *buffer) {
	if len(r.find(b.text, dialect.Layout)) == 0 {
		return
	}
	b.text = strings.Join(renderBlocks(r.parseBlocks(b.lines()), nil), "\n")
}
