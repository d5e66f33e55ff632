package markup

import (
	"context"
	"errors"
	"sync"
)

// ErrSuperseded is returned by Session.Render when a newer render started
// before this one finished.
var ErrSuperseded = errors.New("render superseded by newer one")

// Session serializes renders of a single document for hosting editor. Each
// new call cancels the one in flight, results of superseded renders are
// never returned.
type Session struct {
	r *Renderer

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelCauseFunc
}

func NewSession(r *Renderer) *Session {
	return &Session{r: r}
}

// Generation returns number of renders started so far.
func (s *Session) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

func (s *Session) Render(ctx context.Context, src string) (*Result, error) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel(ErrSuperseded)
	}
	s.generation++
	own := s.generation
	ctx, cancel := context.WithCancelCause(ctx)
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel(nil)

	res, err := s.r.Render(ctx, src)

	s.mu.Lock()
	defer s.mu.Unlock()
	if own != s.generation {
		return nil, ErrSuperseded
	}
	s.cancel = nil
	if err != nil {
		return nil, err
	}
	return res, nil
}
