package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"mkd/dialect"
)

func includePlaceholder(url string) string {
	u := html.EscapeString(url)
	return `<div class="external-markdown" data-url="` + u + `">` +
		`<div class="external-markdown-loading">Loading external content from: ` + u + `</div></div>`
}

// includes turns include directives into placeholders. Nothing is fetched
// here, hosting surface locates placeholders by their url and fills them.
func (r *Renderer) includes(b *buffer) {
	b.each(func(s *slot) {
		s.state, s.markup = stateFrozen, includePlaceholder(s.match.Group("url"))
	}, dialect.Include)
}

var placeholderPattern = regexp.MustCompile(`<div class="external-markdown" data-url="([^"]*)"><div class="external-markdown-loading">`)

// Includes returns urls of unfilled include placeholders in document order,
// each url once.
func Includes(doc string) []string {
	var (
		urls []string
		seen = make(map[string]bool)
	)
	for _, m := range placeholderPattern.FindAllStringSubmatch(doc, -1) {
		u := html.UnescapeString(m[1])
		if !seen[u] {
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// Hydrate replaces every placeholder for url with rendered content.
func Hydrate(doc, url, content string) string {
	u := html.EscapeString(url)
	return strings.ReplaceAll(doc, includePlaceholder(url),
		`<div class="external-markdown" data-url="`+u+`">`+content+`</div>`)
}
