package service

import (
	"context"
	"hash/fnv"
	"strings"
	"sync/atomic"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/provider"
)

// fakeGenerator answers every prompt with respond and counts calls.
type fakeGenerator struct {
	respond func(prompt string) (string, error)
	calls   atomic.Int64
}

func (f *fakeGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	f.calls.Add(1)
	out, err := f.respond(req.Messages()[0].Content())
	if err != nil {
		return provider.ChatCompletionResponse{}, err
	}
	return provider.NewChatCompletionResponse(out, "stop", provider.Usage{}), nil
}

// enrichResponder answers the classification and summary prompts.
func enrichResponder(prompt string) (string, error) {
	if strings.Contains(prompt, "Return ONLY a JSON array of strings") {
		return `["correctness"]`, nil
	}
	comment := prompt[strings.Index(prompt, "Comment:\n")+len("Comment:\n"):]
	return "summary: " + comment[:strings.Index(comment, "\n")], nil
}

// fakeEmbedder returns a deterministic 4-dimensional vector per text.
type fakeEmbedder struct {
	capacity int
	batches  atomic.Int64
}

func (f *fakeEmbedder) Capacity() int { return f.capacity }

func (f *fakeEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	f.batches.Add(1)
	texts := req.Texts()
	out := make([][]float64, len(texts))
	for i, t := range texts {
		h := fnv.New32a()
		_, _ = h.Write([]byte(t))
		s := h.Sum32()
		out[i] = []float64{float64(s & 0xff), float64(s >> 8 & 0xff), float64(s >> 16 & 0xff), float64(s >> 24)}
	}
	return provider.NewEmbeddingResponse(out, provider.Usage{}), nil
}

// shortEmbedder drops the last vector of every batch.
type shortEmbedder struct{}

func (shortEmbedder) Embed(_ context.Context, req provider.EmbeddingRequest) (provider.EmbeddingResponse, error) {
	n := max(len(req.Texts())-1, 0)
	return provider.NewEmbeddingResponse(make([][]float64, n), provider.Usage{}), nil
}

// staticSource is a review.RecordSource over a fixed slice.
type staticSource []review.RawRecord

func (s staticSource) Records(context.Context) ([]review.RawRecord, error) { return s, nil }

func providerRequest(texts ...string) provider.EmbeddingRequest {
	return provider.NewEmbeddingRequest(texts)
}
