package provider

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimited caps the request rate of a TextGenerator with a token bucket.
type RateLimited struct {
	inner   TextGenerator
	limiter *rate.Limiter
}

// NewRateLimited wraps inner so that at most rps requests start per second.
// A non-positive rps returns inner unchanged.
func NewRateLimited(inner TextGenerator, rps float64) TextGenerator {
	if rps <= 0 {
		return inner
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

// ChatCompletion waits for a token, then delegates.
func (r *RateLimited) ChatCompletion(ctx context.Context, req ChatCompletionRequest) (ChatCompletionResponse, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return ChatCompletionResponse{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.inner.ChatCompletion(ctx, req)
}

var _ TextGenerator = (*RateLimited)(nil)
