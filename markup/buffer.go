package markup

import (
	"regexp"
	"strings"

	"mkd/dialect"
)

// Slots are referenced from buffer text by tokens built from private use
// runes: open, index digits (base 16), close. Source text is stripped of
// open and close runes, so token can never be forged by input.
const (
	tokenOpen  = '\uE000'
	tokenClose = '\uE001'
	tokenDigit = '\uE010'
)

var tokenPattern = regexp.MustCompile(`\x{E000}[\x{E010}-\x{E01F}]+\x{E001}`)

type slotState int

const (
	// pending directive waits for generation, markup is loading marker
	statePending slotState = iota
	// resolved generation with text result, inlined back into text
	stateResolved
	// failed generation, markup is error line
	stateFailed
	// frozen markup, no stage looks inside
	stateFrozen
	// held source waits for its own stage, markup is the source itself
	stateHeld
)

func (s slotState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateResolved:
		return "resolved"
	case stateFailed:
		return "failed"
	case stateFrozen:
		return "frozen"
	case stateHeld:
		return "held"
	}
	return "unknown"
}

type slot struct {
	id     string
	kind   dialect.Kind
	state  slotState
	match  dialect.Match
	markup string
}

// buffer is render text plus addressable slot table. Stages rewrite text
// freely, slot contents are changed only through their index.
type buffer struct {
	text  string
	slots []*slot
}

// normalize prepares source text: line endings are unified and token runes
// removed.
func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		if r == tokenOpen || r == tokenClose {
			return -1
		}
		return r
	}, s)
}

func newBuffer(src string) *buffer {
	return &buffer{text: normalize(src)}
}

func token(index int) string {
	var digits []rune
	for {
		digits = append(digits, tokenDigit+rune(index%16))
		index /= 16
		if index == 0 {
			break
		}
	}
	var b strings.Builder
	b.WriteRune(tokenOpen)
	for i := len(digits) - 1; i >= 0; i-- {
		b.WriteRune(digits[i])
	}
	b.WriteRune(tokenClose)
	return b.String()
}

func (b *buffer) lookup(tok string) *slot {
	index := 0
	for _, r := range tok {
		if r == tokenOpen || r == tokenClose {
			continue
		}
		index = index*16 + int(r-tokenDigit)
	}
	if index < 0 || index >= len(b.slots) {
		return nil
	}
	return b.slots[index]
}

// add registers slot and returns its token.
func (b *buffer) add(s *slot) string {
	b.slots = append(b.slots, s)
	return token(len(b.slots) - 1)
}

// replace rewrites every match span (matches must be ordered and must not
// overlap) with whatever fn returns.
func (b *buffer) replace(matches []dialect.Match, fn func(m dialect.Match) string) {
	b.text = splice(b.text, matches, fn)
}

func splice(text string, matches []dialect.Match, fn func(m dialect.Match) string) string {
	if len(matches) == 0 {
		return text
	}
	var out strings.Builder
	out.Grow(len(text))
	last := 0
	for _, m := range matches {
		out.WriteString(text[last:m.Start])
		out.WriteString(fn(m))
		last = m.End
	}
	out.WriteString(text[last:])
	return out.String()
}

// hold moves every match into held slot.
func (b *buffer) hold(matches []dialect.Match) {
	b.replace(matches, func(m dialect.Match) string {
		return b.add(&slot{kind: m.Kind, state: stateHeld, match: m, markup: m.Text(b.text)})
	})
}

// freeze stores finished markup in slot, so later stages cannot alter it.
func (b *buffer) freeze(kind dialect.Kind, markup string) string {
	return b.add(&slot{kind: kind, state: stateFrozen, markup: markup})
}

// each visits slots of requested kinds in creation order.
func (b *buffer) each(fn func(s *slot), kinds ...dialect.Kind) {
	for _, s := range b.slots {
		for _, k := range kinds {
			if s.kind == k {
				fn(s)
				break
			}
		}
	}
}

// inline puts text of resolved slots back into buffer text, so following
// stages treat generated text as if it was written by hand.
func (b *buffer) inline() {
	b.text = tokenPattern.ReplaceAllStringFunc(b.text, func(tok string) string {
		if s := b.lookup(tok); s != nil && s.state == stateResolved {
			return s.markup
		}
		return tok
	})
}

// String serializes buffer substituting every token with slot markup.
func (b *buffer) String() string {
	if len(b.slots) == 0 {
		return b.text
	}
	return tokenPattern.ReplaceAllStringFunc(b.text, func(tok string) string {
		if s := b.lookup(tok); s != nil {
			return s.markup
		}
		return tok
	})
}

// lines splits text, callers join it back with newlines.
func (b *buffer) lines() []string {
	return strings.Split(b.text, "\n")
}

// indentOf returns leading horizontal white space of the line.
func indentOf(line string) string {
	return line[:len(line)-len(strings.TrimLeft(line, " \t"))]
}

func isBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}
