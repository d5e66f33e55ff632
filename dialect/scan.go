package dialect

import (
	"regexp"
	"strings"
	"unicode"
)

const fence = "```"

func codeMatch(start, end int, body string, block bool) Match {
	m := Match{Start: start, End: end, Groups: map[string]string{"code": body}}
	if block {
		m.Groups["block"] = "true"
	}
	return m
}

func runLength(text string, at int) int {
	n := 0
	for at+n < len(text) && text[at+n] == '`' {
		n++
	}
	return n
}

// scanBackticks recognizes fenced blocks (exactly three backticks on both
// sides, may span lines) and inline spans (exactly one backtick on both sides,
// single line). Any other backtick run is literal text.
func scanBackticks(text string) []Match {
	var out []Match
	for i := 0; i < len(text); {
		j := strings.IndexByte(text[i:], '`')
		if j < 0 {
			break
		}
		i += j
		n := runLength(text, i)

		switch n {
		case 3:
			body := i + 3
			if k := strings.Index(text[body:], fence); k > 0 {
				end := body + k + 3
				out = append(out, codeMatch(i, end, text[body:body+k], true))
				i = end
				continue
			}
		case 1:
			body := i + 1
			if k := strings.IndexAny(text[body:], "`\n"); k > 0 && text[body+k] == '`' && runLength(text, body+k) == 1 {
				end := body + k + 1
				out = append(out, codeMatch(i, end, text[body:body+k], false))
				i = end
				continue
			}
		}
		i += n
	}
	return out
}

// scanEmojiCode recognizes emoji code blocks: marker, optional white space,
// then body running to the next tilde or end of input. Trailing white space
// of the body is left in place unless the terminating tilde stands alone
// (followed by white space or end of input), in which case the tilde is
// consumed together with it.
func scanEmojiCode(markerExpr string) ScanFunc {
	marker := regexp.MustCompile(markerExpr)
	return func(text string) []Match {
		var out []Match
		pos := 0
		for _, loc := range marker.FindAllStringIndex(text, -1) {
			if loc[0] < pos {
				continue
			}
			start := loc[1] + len(text[loc[1]:]) - len(strings.TrimLeftFunc(text[loc[1]:], unicode.IsSpace))
			stop := len(text)
			if k := strings.IndexByte(text[start:], '~'); k >= 0 {
				stop = start + k
			}
			body := strings.TrimRightFunc(text[start:stop], unicode.IsSpace)
			if body == "" {
				continue
			}
			end := start + len(body)
			if stop < len(text) && (stop+1 == len(text) || isSpaceByte(text[stop+1])) {
				end = stop + 1
			}
			out = append(out, codeMatch(loc[0], end, body, true))
			pos = end
		}
		return out
	}
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
