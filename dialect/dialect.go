// Package dialect defines surface syntax of every markup directive. Each
// directive kind has exactly two spellings: textual tokens and emoji tokens,
// and every stage of the renderer asks this package for matches instead of
// carrying its own patterns.
package dialect

import "fmt"

// Dialect is one of two equivalent surface syntaxes.
type Dialect int

const (
	Textual Dialect = iota
	Emoji
)

// All lists every dialect in precedence order.
var All = []Dialect{Textual, Emoji}

func (d Dialect) String() string {
	switch d {
	case Textual:
		return "textual"
	case Emoji:
		return "emoji"
	}
	return fmt.Sprintf("Dialect(%d)", int(d))
}

// Kind enumerates directive kinds.
type Kind int

const (
	Header1 Kind = iota
	Header2
	Header3
	Bold
	Italic
	Strike
	Link
	Image
	Code
	ListItem
	ArgDecl
	ToolDecl
	AIDecl
	AIRef
	SymbolRef
	Layout
	Include
	GenText
	GenImage
	GenVoice
	GenVideo
	kindCount
)

var kindNames = [...]string{
	Header1:   "header1",
	Header2:   "header2",
	Header3:   "header3",
	Bold:      "bold",
	Italic:    "italic",
	Strike:    "strike",
	Link:      "link",
	Image:     "image",
	Code:      "code",
	ListItem:  "list-item",
	ArgDecl:   "arg",
	ToolDecl:  "tool",
	AIDecl:    "ai",
	AIRef:     "ai-ref",
	SymbolRef: "symbol-ref",
	Layout:    "layout",
	Include:   "include",
	GenText:   "text",
	GenImage:  "image",
	GenVoice:  "voice",
	GenVideo:  "video",
}

func (k Kind) String() string {
	if k >= 0 && k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds returns every defined directive kind.
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := range kindCount {
		out = append(out, k)
	}
	return out
}

// Generation lists AI generation kinds.
var Generation = []Kind{GenText, GenImage, GenVoice, GenVideo}

// Match is a single directive occurrence.
type Match struct {
	Start, End int
	Kind       Kind
	Dialect    Dialect
	// Groups holds named captures, optional captures which did not
	// participate are absent.
	Groups map[string]string
}

// Group returns named capture or empty string.
func (m Match) Group(name string) string {
	return m.Groups[name]
}

// Has reports whether optional capture participated in the match.
func (m Match) Has(name string) bool {
	_, ok := m.Groups[name]
	return ok
}

// Text returns matched span of the source.
func (m Match) Text(src string) string {
	return src[m.Start:m.End]
}
