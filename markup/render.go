// Package markup renders documents written in either dialect into HTML.
//
// Rendering is a fixed sequence of stages over a single buffer: generation
// directives are expanded first, then headers and emphasis, lists, code,
// symbol declarations and references, layouts and finally includes. Parts
// of the document which must survive later stages untouched (code, pending
// and finished generation results, declarations) are kept in slots and
// addressed by index, never searched for by text.
package markup

import (
	"context"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"mkd/dialect"
	"mkd/generate"
)

// Observer receives serialized buffer while generation is in progress:
// after loading markers are placed and after every directive settles.
type Observer func(snapshot string)

// Renderer holds render settings, it is safe for concurrent use: every
// call owns its buffer and symbol tables.
type Renderer struct {
	table    *dialect.Table
	dialects []dialect.Dialect
	gen      generate.Generator
	observer Observer
	timeout  time.Duration
	policy   *bluemonday.Policy
	log      *zap.Logger
}

// Option customizes Renderer.
type Option func(*Renderer)

// WithEmoji enables or disables emoji dialect. Textual dialect is always on.
func WithEmoji(enabled bool) Option {
	return func(r *Renderer) {
		if enabled {
			r.dialects = dialect.All
		} else {
			r.dialects = []dialect.Dialect{dialect.Textual}
		}
	}
}

// WithTable replaces built-in dialect table.
func WithTable(t *dialect.Table) Option {
	return func(r *Renderer) {
		r.table = t
	}
}

// WithGenerator sets generation backend. Without one every generation
// directive renders as failed.
func WithGenerator(g generate.Generator) Option {
	return func(r *Renderer) {
		r.gen = g
	}
}

func WithObserver(o Observer) Option {
	return func(r *Renderer) {
		r.observer = o
	}
}

// WithTimeout limits time spent on a single generation directive, zero
// means no limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) {
		r.timeout = d
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Renderer) {
		if log != nil {
			r.log = log
		}
	}
}

// New returns renderer recognizing both dialects with generation disabled.
func New(opts ...Option) *Renderer {
	r := &Renderer{
		table:    dialect.Default(),
		dialects: dialect.All,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.Named("render")
	return r
}

// Result of a single render call.
type Result struct {
	HTML    string
	Symbols *Symbols
	// Generated lists settled generation directives in document order.
	Generated []Outcome
}

// Render converts source document to HTML. Directive content never causes
// an error, only cancellation of ctx does, in which case partial results
// are discarded and context cause is returned.
func (r *Renderer) Render(ctx context.Context, src string) (*Result, error) {
	start := time.Now()
	b := newBuffer(src)

	// code is opaque to every stage, including generation
	b.hold(r.find(b.text, dialect.Code))

	outcomes, err := r.expand(ctx, b)
	if err != nil {
		return nil, err
	}
	b.inline()

	b.hold(r.find(b.text, dialect.Code, dialect.ToolDecl, dialect.AIDecl, dialect.AIRef, dialect.ArgDecl, dialect.Include))

	r.headers(b)
	r.emphasis(b)
	r.lists(b)
	r.code(b)
	syms := r.symbols(b)
	r.layouts(b)
	r.includes(b)

	html := b.String()
	if r.policy != nil {
		html = r.policy.Sanitize(html)
	}
	r.log.Debug("Rendered document",
		zap.Int("source", len(src)),
		zap.Int("html", len(html)),
		zap.Int("slots", len(b.slots)),
		zap.Int("generated", len(outcomes)),
		zap.Duration("elapsed", time.Since(start)))

	return &Result{HTML: html, Symbols: syms, Generated: outcomes}, nil
}

func (r *Renderer) find(text string, kinds ...dialect.Kind) []dialect.Match {
	return r.table.FindAny(text, kinds, r.dialects...)
}
