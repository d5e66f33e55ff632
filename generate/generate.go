// Package generate is the boundary to content generation services. Renderer
// sees only Generator interface, concrete backends talk to a generation
// endpoint compatible with the editor's API, to OpenAI or to Gemini.
package generate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mkd/config"
)

// Kind of requested content, values are used on the wire.
type Kind string

const (
	Text  Kind = "text"
	Image Kind = "image"
	Voice Kind = "voice"
	Video Kind = "video"
)

// Request is a single generation directive.
type Request struct {
	Kind   Kind   `json:"type"`
	Bot    string `json:"bot"`
	Prompt string `json:"prompt"`
	// ID correlates request with its placeholder, never sent.
	ID string `json:"-"`
}

// Result of successful generation: Text for text kind, URL (possibly data
// URL) for media kinds.
type Result struct {
	Text string
	URL  string
}

// Generator produces content for directives.
type Generator interface {
	Generate(ctx context.Context, req Request) (Result, error)
}

// Func adapts ordinary function to Generator.
type Func func(ctx context.Context, req Request) (Result, error)

func (f Func) Generate(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}

var (
	ErrUnsupported = errors.New("not supported")
	ErrQuota       = errors.New("API quota exceeded")
	ErrAuth        = errors.New("invalid API key")
	ErrDisabled    = errors.New("content generation is disabled")
)

// Unsupported returns error for content kind backend cannot produce.
func Unsupported(kind Kind) error {
	return fmt.Errorf("%s generation is %w", kind, ErrUnsupported)
}

// ServiceError is failure reported by generation service. Message is shown
// to the reader as is, Kind classifies it for errors.Is.
type ServiceError struct {
	Status  int
	Message string
	Kind    error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind != nil {
		return e.Kind.Error()
	}
	return http.StatusText(e.Status)
}

func (e *ServiceError) Unwrap() error {
	return e.Kind
}

// classify maps HTTP status to sentinel error.
func classify(status int) error {
	switch status {
	case http.StatusTooManyRequests, http.StatusPaymentRequired:
		return ErrQuota
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuth
	case http.StatusNotImplemented:
		return ErrUnsupported
	}
	return nil
}

// retryable reports whether request may succeed when repeated: server side
// failures and transport errors. 429 means exhausted quota for generation
// services, it is reported at once.
func retryable(err error) bool {
	if errors.Is(err, ErrQuota) || errors.Is(err, ErrAuth) || errors.Is(err, ErrUnsupported) {
		return false
	}
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Status >= http.StatusInternalServerError
	}
	var ne net.Error
	return errors.As(err, &ne) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// withRetries calls fn up to retries+1 times with exponential backoff
// (1s, 2s, 4s...) while failures look transient.
func withRetries(ctx context.Context, log *zap.Logger, retries int, fn func() (Result, error)) (Result, error) {
	var (
		res Result
		err error
	)
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			log.Debug("Retrying generation request", zap.Int("attempt", attempt), zap.Duration("delay", delay), zap.Error(err))
			select {
			case <-ctx.Done():
				return Result{}, ctx.Err()
			case <-time.After(delay):
			}
		}
		if res, err = fn(); err == nil || !retryable(err) {
			return res, err
		}
	}
	return res, err
}

// New builds generator selected by configuration. Nil generator and no
// error means generation is disabled.
func New(ctx context.Context, cfg *config.GenerationConfig, log *zap.Logger) (Generator, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("generate")

	var (
		gen Generator
		err error
	)
	switch cfg.Backend {
	case config.GenerationBackendNone:
		return nil, nil
	case config.GenerationBackendHttp:
		gen, err = NewEndpoint(cfg, log)
	case config.GenerationBackendOpenai:
		gen, err = NewOpenAI(cfg, log)
	case config.GenerationBackendGemini:
		gen, err = NewGemini(ctx, cfg, log)
	default:
		return nil, fmt.Errorf("unknown generation backend %s", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	log.Debug("Generation backend ready", zap.Stringer("backend", cfg.Backend))
	return gen, nil
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
