package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/vertex"
	"golang.org/x/oauth2/google"
)

// DefaultAnthropicModel is the Claude model used when none is configured.
const DefaultAnthropicModel = "claude-sonnet-4-5@20250929"

const (
	defaultAnthropicMaxTokens = 4096
	cloudPlatformScope        = "https://www.googleapis.com/auth/cloud-platform"
)

// AnthropicProvider implements text generation using the Claude Messages API,
// either directly or through Vertex AI.
// Anthropic does not provide embeddings, so this provider only supports text generation.
type AnthropicProvider struct {
	client anthropic.Client
	model  string
	retry  Retry
}

// AnthropicConfig holds configuration for Anthropic provider.
type AnthropicConfig struct {
	APIKey          string
	BaseURL         string
	Model           string
	VertexProjectID string
	VertexRegion    string
	Timeout         time.Duration
	Retry           Retry
	HTTPClient      *http.Client
}

// NewAnthropicProviderFromConfig creates a provider from configuration. When
// a Vertex project is set, requests authenticate with Google application
// default credentials instead of an API key.
func NewAnthropicProviderFromConfig(ctx context.Context, cfg AnthropicConfig) (*AnthropicProvider, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultAnthropicModel
	}

	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if cfg.VertexProjectID != "" {
		creds, err := google.FindDefaultCredentials(ctx, cloudPlatformScope)
		if err != nil {
			return nil, NewProviderError("configure", 0, "find google credentials", err)
		}
		opts = append(opts, vertex.WithCredentials(ctx, cfg.VertexRegion, cfg.VertexProjectID, creds))
	} else if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &AnthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
		retry:  cfg.Retry,
	}, nil
}

// Model returns the Claude model name.
func (p *AnthropicProvider) Model() string { return p.model }

// ChatCompletion generates a chat completion using Claude.
func (p *AnthropicProvider) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	messages := req.Messages()
	if len(messages) == 0 {
		return ChatCompletionResponse{}, NewProviderError("chat_completion", 0, "no messages provided", nil)
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: defaultAnthropicMaxTokens,
	}
	if req.MaxTokens() > 0 {
		params.MaxTokens = int64(req.MaxTokens())
	}
	if req.Temperature() > 0 {
		params.Temperature = anthropic.Float(req.Temperature())
	}

	for _, m := range messages {
		switch m.Role() {
		case "system":
			params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content()})
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content())))
		default:
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content())))
		}
	}

	var resp *anthropic.Message
	err := p.retry.do(ctx, func() error {
		var apiErr error
		resp, apiErr = p.client.Messages.New(ctx, params)
		return apiErr
	}, p.isRetryable)
	if err != nil {
		return ChatCompletionResponse{}, p.wrapError(err)
	}

	var content string
	for _, block := range resp.Content {
		if block.Type == "text" {
			content += block.Text
		}
	}

	usage := NewUsage(
		int(resp.Usage.InputTokens),
		int(resp.Usage.OutputTokens),
		int(resp.Usage.InputTokens+resp.Usage.OutputTokens),
	)
	return NewChatCompletionResponse(content, string(resp.StopReason), usage), nil
}

func (p *AnthropicProvider) isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return retryableStatus(apiErr.StatusCode)
	}
	return isTimeout(err)
}

func (p *AnthropicProvider) wrapError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return NewProviderError("chat_completion", apiErr.StatusCode, fmt.Sprintf("anthropic api status %d", apiErr.StatusCode), err)
	}
	return NewProviderError("chat_completion", 0, "anthropic request failed", err)
}

// Close is a no-op for the Anthropic provider.
func (p *AnthropicProvider) Close() error {
	return nil
}

var _ TextGenerator = (*AnthropicProvider)(nil)
