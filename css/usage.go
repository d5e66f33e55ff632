package css

import (
	"strings"

	"golang.org/x/net/html"
)

// UsedClasses returns class names of div elements in document order, which
// covers layout containers and renderer's own markup.
func UsedClasses(doc string) []string {
	var out []string
	z := html.NewTokenizer(strings.NewReader(doc))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return out
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "div" || !hasAttr {
				continue
			}
			for {
				key, val, more := z.TagAttr()
				if string(key) == "class" {
					out = append(out, strings.Fields(string(val))...)
				}
				if !more {
					break
				}
			}
		}
	}
}
