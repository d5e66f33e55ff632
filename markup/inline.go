package markup

import (
	"fmt"
	"slices"

	"golang.org/x/net/html"

	"mkd/dialect"
)

var headerLevels = map[dialect.Kind]int{
	dialect.Header1: 1,
	dialect.Header2: 2,
	dialect.Header3: 3,
}

// headers converts header lines, deepest level is tried first. Indentation
// is kept so headers inside layout bodies stay in their blocks.
func (r *Renderer) headers(b *buffer) {
	b.replace(r.find(b.text, dialect.Header3, dialect.Header2, dialect.Header1), func(m dialect.Match) string {
		level := headerLevels[m.Kind]
		return fmt.Sprintf("%s<h%d>%s</h%d>", m.Group("indent"), level, m.Group("text"), level)
	})
}

var spanTags = map[dialect.Kind]string{
	dialect.Bold:   "strong",
	dialect.Italic: "em",
	dialect.Strike: "del",
}

var spanKinds = []dialect.Kind{dialect.Bold, dialect.Italic, dialect.Strike}

// emphasis handles bold, italic, strike, images and links in this order.
// Images go before links as image syntax contains link syntax.
func (r *Renderer) emphasis(b *buffer) {
	for _, k := range spanKinds {
		tag := spanTags[k]
		b.replace(r.table.FindAll(k, b.text, dialect.Textual), func(m dialect.Match) string {
			return "<" + tag + ">" + m.Group("text") + "</" + tag + ">"
		})
	}
	if slices.Contains(r.dialects, dialect.Emoji) {
		b.text = r.lineSpans(b.text)
	}

	b.replace(r.find(b.text, dialect.Image), func(m dialect.Match) string {
		return b.freeze(m.Kind, imageMarkup(m.Group("url"), m.Group("alt")))
	})
	b.replace(r.find(b.text, dialect.Link), func(m dialect.Match) string {
		open := fmt.Sprintf(`<a href="%s">`, html.EscapeString(m.Group("url")))
		return b.freeze(m.Kind, open) + m.Group("label") + "</a>"
	})
}

// lineSpans renders emoji emphasis. Such span runs to the end of line, so
// spans starting inside it are rendered first and closed before it is.
func (r *Renderer) lineSpans(text string) string {
	return splice(text, r.table.FindAny(text, spanKinds, dialect.Emoji), func(m dialect.Match) string {
		tag := spanTags[m.Kind]
		return "<" + tag + ">" + r.lineSpans(m.Group("text")) + "</" + tag + ">"
	})
}

// code renders held code slots.
func (r *Renderer) code(b *buffer) {
	b.each(func(s *slot) {
		body := html.EscapeString(s.match.Group("code"))
		if s.match.Has("block") {
			s.markup = "<pre><code>" + body + "</code></pre>"
		} else {
			s.markup = "<code>" + body + "</code>"
		}
		s.state = stateFrozen
	}, dialect.Code)
}
