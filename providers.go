package archdistill

import (
	"context"
	"fmt"
	"io"

	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/helixml/archdistill/internal/config"
)

// retryFor maps endpoint retry settings onto the provider retry policy.
func retryFor(e config.Endpoint) provider.Retry {
	return provider.Retry{
		MaxRetries:    e.MaxRetries(),
		InitialDelay:  e.InitialDelay(),
		BackoffFactor: e.BackoffFactor(),
	}
}

// textProviderFor builds the generation provider for an endpoint. The
// returned closer releases the underlying client; the generator itself may
// be wrapped in a rate limiter.
func textProviderFor(ctx context.Context, e config.Endpoint) (provider.TextGenerator, io.Closer, error) {
	httpClient, err := provider.CachingClient(e.CacheDir())
	if err != nil {
		return nil, nil, fmt.Errorf("response cache: %w", err)
	}

	var (
		gen    provider.TextGenerator
		closer io.Closer
	)
	switch e.Provider() {
	case config.ProviderOpenAI:
		p := provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
			APIKey:     e.APIKey(),
			BaseURL:    e.BaseURL(),
			ChatModel:  e.Model(),
			Timeout:    e.Timeout(),
			Retry:      retryFor(e),
			HTTPClient: httpClient,
		})
		gen, closer = p, p
	default:
		p, err := provider.NewAnthropicProviderFromConfig(ctx, provider.AnthropicConfig{
			APIKey:          e.APIKey(),
			BaseURL:         e.BaseURL(),
			Model:           e.Model(),
			VertexProjectID: e.VertexProjectID(),
			VertexRegion:    e.VertexRegion(),
			Timeout:         e.Timeout(),
			Retry:           retryFor(e),
			HTTPClient:      httpClient,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("anthropic provider: %w", err)
		}
		gen, closer = p, p
	}

	if rps := e.RequestsPerSecond(); rps > 0 {
		gen = provider.NewRateLimited(gen, rps)
	}
	return gen, closer, nil
}

// embeddingProviderFor builds an OpenAI-compatible embedding provider.
func embeddingProviderFor(e config.Endpoint) (*provider.OpenAIProvider, error) {
	httpClient, err := provider.CachingClient(e.CacheDir())
	if err != nil {
		return nil, fmt.Errorf("response cache: %w", err)
	}
	return provider.NewOpenAIProviderFromConfig(provider.OpenAIConfig{
		APIKey:         e.APIKey(),
		BaseURL:        e.BaseURL(),
		EmbeddingModel: e.Model(),
		Timeout:        e.Timeout(),
		Retry:          retryFor(e),
		HTTPClient:     httpClient,
	}), nil
}
