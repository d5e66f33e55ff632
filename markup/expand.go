package markup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"mkd/dialect"
	"mkd/generate"
)

// Outcome describes settled generation directive.
type Outcome struct {
	ID      string
	Kind    generate.Kind
	Bot     string
	Prompt  string
	Err     error
	Elapsed time.Duration
}

var generationKinds = map[dialect.Kind]generate.Kind{
	dialect.GenText:  generate.Text,
	dialect.GenImage: generate.Image,
	dialect.GenVoice: generate.Voice,
	dialect.GenVideo: generate.Video,
}

func loadingMarker(id, bot string) string {
	return fmt.Sprintf(`<div class="ai-loading" id="ai-loading-%s">%s is thinking...</div>`, id, html.EscapeString(bot))
}

func errorLine(kind generate.Kind, err error) string {
	return fmt.Sprintf(`<div class="ai-error">Error generating %s: %s</div>`, kind, html.EscapeString(err.Error()))
}

func imageMarkup(url, alt string) string {
	return fmt.Sprintf(`<img src="%s" alt="%s">`, html.EscapeString(url), html.EscapeString(alt))
}

func audioMarkup(url string) string {
	return fmt.Sprintf(`<audio controls><source src="%s" type="audio/mpeg">Your browser does not support the audio element.</audio>`, html.EscapeString(url))
}

var errTimeout = errors.New("generation timed out")

// expand replaces every generation directive with loading marker and then
// resolves directives one at a time. Failure of a directive is rendered in
// its place and never stops the others.
func (r *Renderer) expand(ctx context.Context, b *buffer) ([]Outcome, error) {
	matches := r.find(b.text, dialect.Generation...)
	if len(matches) == 0 {
		return nil, nil
	}

	log := r.log.Named("expand")
	work := make([]*slot, 0, len(matches))
	b.replace(matches, func(m dialect.Match) string {
		s := &slot{id: uuid.NewString(), kind: m.Kind, state: statePending, match: m}
		s.markup = loadingMarker(s.id, m.Group("bot"))
		work = append(work, s)
		return b.add(s)
	})
	r.observe(b)

	outcomes := make([]Outcome, 0, len(work))
	for _, s := range work {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		out := r.settle(ctx, log, s)
		if ctx.Err() != nil {
			// owner went away while we were waiting, result is stale
			return nil, context.Cause(ctx)
		}
		outcomes = append(outcomes, out)
		r.observe(b)
	}
	return outcomes, nil
}

// settle runs generation for a single pending slot and stores its result.
func (r *Renderer) settle(ctx context.Context, log *zap.Logger, s *slot) Outcome {
	req := generate.Request{
		Kind:   generationKinds[s.kind],
		Bot:    s.match.Group("bot"),
		Prompt: s.match.Group("prompt"),
		ID:     s.id,
	}
	out := Outcome{ID: req.ID, Kind: req.Kind, Bot: req.Bot, Prompt: req.Prompt}

	log.Debug("Requesting generation",
		zap.String("id", req.ID),
		zap.Stringer("dialect", s.match.Dialect),
		zap.String("kind", string(req.Kind)),
		zap.String("bot", req.Bot))

	start := time.Now()
	res, err := r.generate(ctx, req)
	out.Elapsed = time.Since(start)

	if err == nil {
		switch req.Kind {
		case generate.Text:
			s.state, s.markup = stateResolved, normalize(res.Text)
		case generate.Image:
			if res.URL == "" {
				err = errors.New("no image URL returned")
				break
			}
			s.state, s.markup = stateFrozen, imageMarkup(res.URL, req.Prompt)
		case generate.Voice:
			if res.URL == "" {
				err = errors.New("no audio URL returned")
				break
			}
			s.state, s.markup = stateFrozen, audioMarkup(res.URL)
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = errTimeout
		}
		out.Err = err
		s.state, s.markup = stateFailed, errorLine(req.Kind, err)
		log.Warn("Generation failed",
			zap.String("id", req.ID),
			zap.String("kind", string(req.Kind)),
			zap.String("bot", req.Bot),
			zap.Duration("elapsed", out.Elapsed),
			zap.Error(err))
		return out
	}

	log.Info("Generation complete",
		zap.String("id", req.ID),
		zap.String("kind", string(req.Kind)),
		zap.String("bot", req.Bot),
		zap.Duration("elapsed", out.Elapsed))
	return out
}

func (r *Renderer) generate(ctx context.Context, req generate.Request) (generate.Result, error) {
	if req.Kind == generate.Video {
		return generate.Result{}, generate.Unsupported(req.Kind)
	}
	if r.gen == nil {
		return generate.Result{}, generate.ErrDisabled
	}
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	return r.gen.Generate(ctx, req)
}

func (r *Renderer) observe(b *buffer) {
	if r.observer != nil {
		r.observer(b.String())
	}
}
