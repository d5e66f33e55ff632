package generate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"mkd/config"
)

const (
	geminiTextModel  = "gemini-2.5-flash"
	geminiImageModel = "imagen-4.0-generate-001"
)

// Gemini generates text and images with Google Gemini API. Speech is not
// offered by the API in a form usable here.
type Gemini struct {
	client     *genai.Client
	textModel  string
	imageModel string
	retries    int
	log        *zap.Logger
}

// NewGemini creates Gemini client.
func NewGemini(ctx context.Context, cfg *config.GenerationConfig, log *zap.Logger) (*Gemini, error) {
	if cfg.APIKey.Value() == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey.Value(),
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient(cfg.Timeout),
	}
	if cfg.Endpoint != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.Endpoint}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:     client,
		textModel:  orDefault(cfg.TextModel, geminiTextModel),
		imageModel: orDefault(cfg.ImageModel, geminiImageModel),
		retries:    cfg.Retries,
		log:        log.Named("gemini"),
	}, nil
}

func (g *Gemini) Generate(ctx context.Context, req Request) (Result, error) {
	switch req.Kind {
	case Text:
		return withRetries(ctx, g.log, g.retries, func() (Result, error) { return g.text(ctx, req) })
	case Image:
		return withRetries(ctx, g.log, g.retries, func() (Result, error) { return g.image(ctx, req) })
	}
	return Result{}, Unsupported(req.Kind)
}

func (g *Gemini) text(ctx context.Context, req Request) (Result, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.textModel,
		[]*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)},
		&genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(systemPrompt(req.Bot), genai.RoleUser),
		},
	)
	if err != nil {
		return Result{}, geminiError(err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return Result{}, fmt.Errorf("no completion returned")
	}
	return Result{Text: text}, nil
}

func (g *Gemini) image(ctx context.Context, req Request) (Result, error) {
	resp, err := g.client.Models.GenerateImages(ctx, g.imageModel, req.Prompt, nil)
	if err != nil {
		return Result{}, geminiError(err)
	}
	for _, img := range resp.GeneratedImages {
		if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
			continue
		}
		return Result{URL: DataURL(img.Image.ImageBytes, img.Image.MIMEType)}, nil
	}
	return Result{}, fmt.Errorf("no image returned")
}

// geminiError keeps API status so retry and classification work the same way
// as for other backends.
func geminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &ServiceError{Status: apiErr.Code, Message: apiErr.Message, Kind: classify(apiErr.Code)}
	}
	return err
}
