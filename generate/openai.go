package generate

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"mkd/config"
)

const (
	openAIBaseURL    = "https://api.openai.com/v1"
	openAITextModel  = "gpt-3.5-turbo"
	openAIImageModel = "dall-e-3"
	openAIVoiceModel = "tts-1"
	openAIVoice      = "alloy"
	openAIImageSize  = "1024x1024"
)

// systemPrompt introduces the model as the bot named in directive.
func systemPrompt(bot string) string {
	return fmt.Sprintf("You are %s, an AI assistant. Respond in a helpful and friendly manner.", bot)
}

// OpenAI talks to OpenAI compatible REST API directly.
type OpenAI struct {
	baseURL    string
	apiKey     string
	textModel  string
	imageModel string
	imageSize  string
	voiceModel string
	voice      string
	retries    int
	client     *http.Client
	log        *zap.Logger
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model    string          `json:"model"`
	Messages []openAIMessage `json:"messages"`
	Stream   bool            `json:"stream"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

type openAIImageRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	N      int    `json:"n"`
	Size   string `json:"size"`
}

type openAIImageResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
}

type openAISpeechRequest struct {
	Model string `json:"model"`
	Voice string `json:"voice"`
	Input string `json:"input"`
}

type openAIErrorResponse struct {
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// NewOpenAI returns generator using OpenAI chat, image and speech APIs.
func NewOpenAI(cfg *config.GenerationConfig, log *zap.Logger) (*OpenAI, error) {
	if cfg.APIKey.Value() == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenAI{
		baseURL:    strings.TrimRight(orDefault(cfg.Endpoint, openAIBaseURL), "/"),
		apiKey:     cfg.APIKey.Value(),
		textModel:  orDefault(cfg.TextModel, openAITextModel),
		imageModel: orDefault(cfg.ImageModel, openAIImageModel),
		imageSize:  orDefault(cfg.ImageSize, openAIImageSize),
		voiceModel: orDefault(cfg.VoiceModel, openAIVoiceModel),
		voice:      orDefault(cfg.Voice, openAIVoice),
		retries:    cfg.Retries,
		client:     httpClient(cfg.Timeout),
		log:        log.Named("openai"),
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (Result, error) {
	var call func() (Result, error)
	switch req.Kind {
	case Text:
		call = func() (Result, error) { return o.chat(ctx, req) }
	case Image:
		call = func() (Result, error) { return o.image(ctx, req) }
	case Voice:
		call = func() (Result, error) { return o.speech(ctx, req) }
	default:
		return Result{}, Unsupported(req.Kind)
	}
	return withRetries(ctx, o.log, o.retries, call)
}

func (o *OpenAI) chat(ctx context.Context, req Request) (Result, error) {
	body, err := o.do(ctx, "/chat/completions", openAIChatRequest{
		Model: o.textModel,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt(req.Bot)},
			{Role: "user", Content: req.Prompt},
		},
	})
	if err != nil {
		return Result{}, err
	}
	var resp openAIChatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no completion returned")
	}
	return Result{Text: strings.TrimSpace(resp.Choices[0].Message.Content)}, nil
}

func (o *OpenAI) image(ctx context.Context, req Request) (Result, error) {
	body, err := o.do(ctx, "/images/generations", openAIImageRequest{
		Model:  o.imageModel,
		Prompt: req.Prompt,
		N:      1,
		Size:   o.imageSize,
	})
	if err != nil {
		return Result{}, err
	}
	var resp openAIImageResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Result{}, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Data) == 0 {
		return Result{}, fmt.Errorf("no image returned")
	}
	if resp.Data[0].URL != "" {
		return Result{URL: resp.Data[0].URL}, nil
	}
	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil || len(data) == 0 {
		return Result{}, fmt.Errorf("no image returned")
	}
	return Result{URL: DataURL(data, "image/png")}, nil
}

func (o *OpenAI) speech(ctx context.Context, req Request) (Result, error) {
	body, err := o.do(ctx, "/audio/speech", openAISpeechRequest{
		Model: o.voiceModel,
		Voice: o.voice,
		Input: req.Prompt,
	})
	if err != nil {
		return Result{}, err
	}
	if len(body) == 0 {
		return Result{}, fmt.Errorf("no audio returned")
	}
	return Result{URL: DataURL(body, "audio/mpeg")}, nil
}

// do posts JSON payload and returns successful response body.
func (o *OpenAI) do(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, openAIError(resp.StatusCode, body)
	}
	return body, nil
}

// openAIError converts error payload into ServiceError with messages
// readers can act upon.
func openAIError(status int, body []byte) error {
	se := &ServiceError{Status: status, Kind: classify(status)}

	var payload openAIErrorResponse
	if json.Unmarshal(body, &payload) == nil && payload.Error != nil {
		se.Message = payload.Error.Message
		switch payload.Error.Code {
		case "insufficient_quota":
			se.Kind, se.Message = ErrQuota, "API quota exceeded. Please check your OpenAI API limits."
		case "invalid_api_key":
			se.Kind, se.Message = ErrAuth, "Invalid API key. Please check your OpenAI API configuration."
		case "rate_limit_exceeded":
			// transient, let retry loop handle it
			se.Kind = nil
		}
	}
	if se.Message == "" {
		se.Message = fmt.Sprintf("API request failed with status %d", status)
	}
	return se
}
