package providers

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/time/rate"
)

const (
	VisionClientName = "vision"

	DefaultVisionBaseURL = "http://localhost:11434/v1"
	DefaultVisionModel   = "llava:13b"
	// DefaultVisionTimeout is generous because local models on CPU can take
	// minutes per page.
	DefaultVisionTimeout = 600 * time.Second
	ollamaAPIKey         = "ollama"
)

// VisionConfig holds configuration for an OpenAI-compatible vision endpoint.
type VisionConfig struct {
	Name       string        // provider label, "vision" when empty
	BaseURL    string        // Ollama's OpenAI-compatible endpoint by default
	APIKey     string        // Ollama ignores keys; hosted endpoints need one
	Model      string        // "llava:13b" (default)
	RateLimit  float64       // Requests per second, 0 = unlimited
	MaxRetries int           // Retry attempts for SDK transport
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// VisionClient implements Transcriber using the official OpenAI SDK.
type VisionClient struct {
	name       string
	model      string
	maxRetries int
	limiter    *rate.Limiter
	client     openai.Client
}

// NewVisionClient creates a new vision client.
func NewVisionClient(cfg VisionConfig) *VisionClient {
	if cfg.Name == "" {
		cfg.Name = VisionClientName
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultVisionBaseURL
	}
	if cfg.APIKey == "" {
		cfg.APIKey = ollamaAPIKey
	}
	if cfg.Model == "" {
		cfg.Model = DefaultVisionModel
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultVisionTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	client := openai.NewClient(
		option.WithBaseURL(cfg.BaseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	)

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &VisionClient{
		name:       cfg.Name,
		model:      cfg.Model,
		maxRetries: cfg.MaxRetries,
		limiter:    limiter,
		client:     client,
	}
}

// Name returns the provider identifier.
func (c *VisionClient) Name() string {
	return c.name
}

// Model returns the configured default model.
func (c *VisionClient) Model() string {
	return c.model
}

// MaxRetries returns the SDK transport retry count.
func (c *VisionClient) MaxRetries() int {
	return c.maxRetries
}

// HealthCheck verifies the endpoint answers a model listing.
func (c *VisionClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s models list failed: %w", c.name, mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("%s models list returned nil response", c.name)
	}
	return nil
}

// Transcribe sends the image as a data URL user message after the system prompt.
func (c *VisionClient) Transcribe(ctx context.Context, req *TranscribeRequest) (*TranscribeResult, error) {
	start := time.Now()

	if req == nil {
		return nil, errors.New("request is required")
	}
	if len(req.Image) == 0 {
		return nil, errors.New("image is required")
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = c.model
	}
	mime := req.MimeType
	if mime == "" {
		mime = "image/png"
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	dataURL := "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(req.Image)
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
			}),
		},
		Temperature: openai.Float(req.Temperature),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params, option.WithHeader("X-Request-ID", requestID))
	if err != nil {
		return nil, mapOpenAIError(err)
	}

	result := &TranscribeResult{
		Model:            resp.Model,
		RequestID:        requestID,
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		ExecutionTime:    time.Since(start),
	}
	if result.Model == "" {
		result.Model = model
	}
	if len(resp.Choices) > 0 {
		result.Text = resp.Choices[0].Message.Content
	}
	return result, nil
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("vision endpoint rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("vision endpoint error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("vision endpoint error (status %d)", apiErr.StatusCode)
	}
	return err
}

var _ Transcriber = (*VisionClient)(nil)
