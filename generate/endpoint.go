package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mkd/config"
)

// Endpoint posts requests to generation service speaking editor's protocol:
// request {type, bot, prompt}, response {content} for text, {url} for media
// and {error} with non 2xx status on failure.
type Endpoint struct {
	url     string
	apiKey  string
	retries int
	client  *http.Client
	log     *zap.Logger
}

type endpointResponse struct {
	Content string `json:"content"`
	URL     string `json:"url"`
	Error   string `json:"error"`
	Details string `json:"details"`
}

// NewEndpoint returns generator talking to configured endpoint.
func NewEndpoint(cfg *config.GenerationConfig, log *zap.Logger) (*Endpoint, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("generation endpoint is not configured")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Endpoint{
		url:     cfg.Endpoint,
		apiKey:  cfg.APIKey.Value(),
		retries: cfg.Retries,
		client:  httpClient(cfg.Timeout),
		log:     log.Named("endpoint"),
	}, nil
}

func (e *Endpoint) Generate(ctx context.Context, req Request) (Result, error) {
	return withRetries(ctx, e.log, e.retries, func() (Result, error) {
		return e.post(ctx, req)
	})
}

func (e *Endpoint) post(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.url, bytes.NewReader(payload))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create request: %w", err)
	}
	hreq.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		hreq.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(hreq)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Result{}, fmt.Errorf("failed to read response: %w", err)
	}

	var data endpointResponse
	decodeErr := json.Unmarshal(body, &data)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(data.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: msg, Kind: classify(resp.StatusCode)}
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", decodeErr)
	}
	if data.Error != "" {
		return Result{}, &ServiceError{Status: resp.StatusCode, Message: data.Error}
	}

	if req.Kind == Text {
		return Result{Text: data.Content}, nil
	}
	if data.URL == "" {
		return Result{}, fmt.Errorf("service returned no %s url", req.Kind)
	}
	return Result{URL: data.URL}, nil
}
