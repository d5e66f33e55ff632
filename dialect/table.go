package dialect

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"
)

// Pair is the only way to register directive kind: both spellings at once.
type Pair struct {
	Textual *Rule
	Emoji   *Rule
}

func (p Pair) rule(d Dialect) *Rule {
	if d == Emoji {
		return p.Emoji
	}
	return p.Textual
}

// Table maps directive kinds to their rules.
type Table struct {
	pairs map[Kind]Pair
}

// NewTable builds table from pairs. It panics when either side of a pair is
// missing: a kind recognized in one dialect only breaks output equivalence.
func NewTable(pairs map[Kind]Pair) *Table {
	t := &Table{pairs: make(map[Kind]Pair, len(pairs))}
	for k, p := range pairs {
		if p.Textual == nil || p.Emoji == nil {
			panic(fmt.Sprintf("dialect: kind %s must be defined for both dialects", k))
		}
		t.pairs[k] = p
	}
	return t
}

// Rule returns rule for kind in requested dialect, nil for unknown kinds.
func (t *Table) Rule(kind Kind, d Dialect) *Rule {
	p, ok := t.pairs[kind]
	if !ok {
		return nil
	}
	return p.rule(d)
}

// Kinds returns registered kinds in ascending order.
func (t *Table) Kinds() []Kind {
	out := make([]Kind, 0, len(t.pairs))
	for k := range t.pairs {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// FindAll returns occurrences of a single kind in the requested dialects
// (all dialects when none given).
func (t *Table) FindAll(kind Kind, text string, dialects ...Dialect) []Match {
	return t.FindAny(text, []Kind{kind}, dialects...)
}

// FindAny returns non overlapping occurrences of any of the kinds ordered by
// position. When matches overlap the earliest wins, then the longest, then
// textual dialect, then the kind listed first.
func (t *Table) FindAny(text string, kinds []Kind, dialects ...Dialect) []Match {
	if len(dialects) == 0 {
		dialects = All
	}

	var all []Match
	for _, k := range kinds {
		p, ok := t.pairs[k]
		if !ok {
			continue
		}
		for _, d := range dialects {
			r := p.rule(d)
			if d == Emoji && r == p.Textual {
				// shared spelling, already collected
				continue
			}
			for _, m := range r.find(text) {
				m.Kind, m.Dialect = k, d
				all = append(all, m)
			}
		}
	}

	order := func(k Kind) int { return slices.Index(kinds, k) }
	slices.SortStableFunc(all, func(a, b Match) int {
		return cmp.Or(
			cmp.Compare(a.Start, b.Start),
			cmp.Compare(b.End, a.End),
			cmp.Compare(a.Dialect, b.Dialect),
			cmp.Compare(order(a.Kind), order(b.Kind)),
		)
	})

	out := all[:0]
	last := 0
	for _, m := range all {
		if m.Start < last {
			continue
		}
		out = append(out, m)
		last = max(m.End, m.Start+1)
	}
	return out
}

// Default returns table with built-in spellings.
var Default = sync.OnceValue(func() *Table {
	return NewTable(builtin())
})

const (
	// optional horizontal space
	sp = `[ \t]*`
	// bracketed name without line breaks
	name = `\[(?P<name>[^\]\n]+)\]`
	// text up to a blank line or end of input
	paragraph = `(?:[^\n]|\n[^\n])*`
	// separator between declaration parts: may continue on the next line
	brk = `[ \t]*\n?[ \t]*`
)

// emoji returns quick rejection marker (tilde and the first glyph) and
// expression for emoji token.
func emoji(glyph string) (marker, expr string) {
	first, _ := utf8.DecodeRuneInString(glyph)
	return "~" + string(first), "~" + glyphs(glyph)
}

func header(level int) Pair {
	pencil, pencilExpr := emoji(strings.Repeat("✏️", level))
	tail := `[ \t]+(?P<text>\S[^\n]*?)[ \t]*$`
	return Pair{
		Textual: Pattern(strings.Repeat("#", level), `(?m)^(?P<indent>[ \t]*)`+strings.Repeat("#", level)+tail),
		Emoji:   Pattern(pencil, `(?m)^(?P<indent>[ \t]*)`+pencilExpr+tail),
	}
}

// lineSpan is emphasis which in emoji dialect extends to the end of line.
func lineSpan(textualMarker, textualExpr, glyph string) Pair {
	marker, expr := emoji(glyph)
	return Pair{
		Textual: Pattern(textualMarker, textualExpr),
		Emoji:   Pattern(marker, expr+sp+`(?P<text>\S(?:[^\n]*\S)?)`),
	}
}

func prefixed(textualMarker, textualExpr, glyph, rest string) Pair {
	marker, expr := emoji(glyph)
	return Pair{
		Textual: Pattern(textualMarker, textualExpr+rest),
		Emoji:   Pattern(marker, expr+sp+rest),
	}
}

func generation(keyword, glyph string) Pair {
	const rest = `\[(?P<bot>[^\]\n]+)\]` + sp + `\("(?P<prompt>[^"]+)"\)`
	return prefixed("~"+keyword+"[", `~`+keyword, glyph, rest)
}

func same(r *Rule) Pair {
	return Pair{Textual: r, Emoji: r}
}

func builtin() map[Kind]Pair {
	const (
		link     = `\[(?P<label>[^\]\n]+)\]\((?P<url>[^)\s]+)\)`
		image    = `\[(?P<alt>[^\]\n]+)\]\((?P<url>[^)\s]+)\)`
		argDecl  = name + `:(?P<type>[^\s(]+)` + sp + `\((?P<desc>[^\n]*?)\)`
		toolDecl = name + `\((?P<params>[^)\n]*)\)` +
			`(?:` + brk + `\*\*Args:\*\*` + sp + `(?P<args>` + paragraph + `?))?` +
			brk + `\*\*Description:\*\*` + sp + `(?P<desc>` + paragraph + `)`
		aiRef  = name + `\((?P<params>[^)\n]*?)(?:,` + sp + `tool:` + sp + `\[(?P<tool>[^\]\n]+)\])?\)`
		aiDecl = aiRef + brk + `\*\*Description:\*\*` + sp + `(?P<desc>` + paragraph + `)`
		layout = `\[(?P<class>[^\]\n]+)\]` + sp + `$`
		incl   = `\(` + sp + `url` + sp + `=` + sp + `"(?P<url>[^"\n]+)"` + sp + `\)`
	)

	codeMarker, codeExpr := emoji("💻")

	return map[Kind]Pair{
		Header1: header(1),
		Header2: header(2),
		Header3: header(3),

		Bold:   lineSpan("**", `\*\*(?P<text>[^\n]+?)\*\*`, "🌟"),
		Italic: lineSpan("*", `\*(?P<text>[^*\n]+)\*`, "🖋️"),
		Strike: lineSpan("~~", `~~(?P<text>[^~\n]+)~~`, "❌"),

		Link:  prefixed("](", ``, "🔗", link),
		Image: prefixed("![", `!`, "🖼️", image),

		Code: {
			Textual: Scanner("`", scanBackticks),
			Emoji:   Scanner(codeMarker, scanEmojiCode(codeExpr)),
		},

		ListItem: same(Pattern("", `(?m)^(?P<indent> *)(?P<marker>-|\d+\.)(?:[ \t]+(?P<text>[^\n]*))?$`)),

		ArgDecl:  prefixed("@arg[", `@arg`, "💡", argDecl),
		ToolDecl: prefixed("@tool[", `@tool`, "🔧", toolDecl),
		AIDecl:   prefixed("@ai[", `@ai`, "🤖", aiDecl),
		AIRef:    prefixed("@ai[", `@ai`, "🤖", aiRef),

		SymbolRef: same(Pattern("{", `\{(?P<name>[^{}\n]+)\}`)),

		Layout: {
			Textual: Pattern(">", `(?m)^(?P<indent>[ \t]*)>`+sp+layout),
			Emoji: func() *Rule {
				marker, expr := emoji("📦")
				return Pattern(marker, `(?m)^(?P<indent>[ \t]*)`+expr+sp+layout)
			}(),
		},

		Include: prefixed("~mkd", `~mkd`+sp, "📄", incl),

		GenText:  generation("ai", "🤖"),
		GenImage: generation("ai-img", "🤖🖼️"),
		GenVoice: generation("ai-voice", "🤖🔈"),
		GenVideo: generation("ai-video", "🤖🎬"),
	}
}
