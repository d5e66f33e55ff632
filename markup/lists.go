package markup

import (
	"strings"

	"mkd/dialect"
)

// listFrame is an open list. Nested lists are emitted inside the still
// open item of their parent.
type listFrame struct {
	tag      string
	level    int
	itemOpen bool
	// itemLine is index of output line holding current item opening
	itemLine    int
	hasChildren bool
}

type listParser struct {
	out    []string
	frames []*listFrame
	indent string
}

func (p *listParser) emit(line string) {
	p.out = append(p.out, p.indent+line)
}

func (p *listParser) top() *listFrame {
	return p.frames[len(p.frames)-1]
}

func (p *listParser) closeItem(f *listFrame) {
	if !f.itemOpen {
		return
	}
	if f.hasChildren {
		p.emit("</li>")
	} else {
		p.out[f.itemLine] += "</li>"
	}
	f.itemOpen, f.hasChildren = false, false
}

func (p *listParser) pop() {
	f := p.top()
	p.closeItem(f)
	p.emit("</" + f.tag + ">")
	p.frames = p.frames[:len(p.frames)-1]
}

func (p *listParser) closeAll() {
	for len(p.frames) > 0 {
		p.pop()
	}
	p.indent = ""
}

func (p *listParser) push(tag string, level int) {
	if len(p.frames) > 0 {
		p.top().hasChildren = true
	}
	p.frames = append(p.frames, &listFrame{tag: tag, level: level})
	p.emit("<" + tag + ">")
}

func (p *listParser) item(indent, tag, text string) {
	level := len(indent) / 2
	switch {
	case len(p.frames) == 0:
		p.indent = indent
		p.push(tag, level)
	case level > p.top().level:
		p.push(tag, level)
	default:
		for p.top().level > level {
			if len(p.frames) == 1 || p.frames[len(p.frames)-2].level < level {
				// no frame at this level, dedent lands in between
				p.top().level = level
				break
			}
			p.pop()
		}
	}

	f := p.top()
	p.closeItem(f)
	p.emit("<li>" + text)
	f.itemOpen, f.itemLine = true, len(p.out)-1
}

// lists turns runs of list item lines into nested list markup. Any other
// line, blank lines included, closes every open list.
func (r *Renderer) lists(b *buffer) {
	lines := b.lines()
	p := &listParser{out: make([]string, 0, len(lines))}
	for _, line := range lines {
		ms := r.table.FindAll(dialect.ListItem, line, dialect.Textual)
		if len(ms) != 1 || ms[0].Start != 0 || ms[0].End != len(line) {
			p.closeAll()
			p.out = append(p.out, line)
			continue
		}
		m := ms[0]
		tag := "ul"
		if m.Group("marker") != "-" {
			tag = "ol"
		}
		p.item(m.Group("indent"), tag, m.Group("text"))
	}
	p.closeAll()
	b.text = strings.Join(p.out, "\n")
}
