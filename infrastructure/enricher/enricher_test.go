package enricher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/provider"
)

// fakeGenerator answers classification prompts with classifyOut and summary
// prompts with a summary echoing the comment.
type fakeGenerator struct {
	classifyOut string
	failOn      string
	calls       atomic.Int64

	mu      sync.Mutex
	prompts []provider.ChatCompletionRequest
}

func (f *fakeGenerator) ChatCompletion(_ context.Context, req provider.ChatCompletionRequest) (provider.ChatCompletionResponse, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.prompts = append(f.prompts, req)
	f.mu.Unlock()

	prompt := req.Messages()[0].Content()
	if f.failOn != "" && strings.Contains(prompt, f.failOn) {
		return provider.ChatCompletionResponse{}, errors.New("upstream unavailable")
	}
	if strings.Contains(prompt, "Return ONLY a JSON array") {
		return provider.NewChatCompletionResponse(f.classifyOut, "stop", provider.Usage{}), nil
	}
	comment := prompt[strings.Index(prompt, "Comment:\n")+len("Comment:\n"):]
	comment = comment[:strings.Index(comment, "\n")]
	return provider.NewChatCompletionResponse("  summary of "+comment+"\n", "stop", provider.Usage{}), nil
}

func TestClassify_ParsesArray(t *testing.T) {
	gen := &fakeGenerator{classifyOut: "```json\n[\"correctness\", \"upgrade-safety\"]\n```"}
	e := New(gen)

	got, err := e.Classify(context.Background(), "please validate")
	require.NoError(t, err)
	assert.Equal(t, []string{"correctness", "upgrade-safety"}, got)

	req := gen.prompts[0]
	assert.Equal(t, ClassifyMaxTokens, req.MaxTokens())
	assert.Contains(t, req.Messages()[0].Content(), "- validation-strictness\n")
	assert.Contains(t, req.Messages()[0].Content(), "Comment:\nplease validate")
}

func TestClassify_FallsBackToRawText(t *testing.T) {
	gen := &fakeGenerator{classifyOut: "  correctness, probably  "}
	e := New(gen)

	got, err := e.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"correctness, probably"}, got)
}

func TestClassify_StripsThinking(t *testing.T) {
	gen := &fakeGenerator{classifyOut: "<think>maybe [\"wrong\"]</think>[\"config-safety\"]"}
	e := New(gen)

	got, err := e.Classify(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"config-safety"}, got)
}

func TestClassify_CustomTaxonomy(t *testing.T) {
	gen := &fakeGenerator{classifyOut: "[]"}
	e := New(gen, WithConcerns([]string{"security"}))

	_, err := e.Classify(context.Background(), "x")
	require.NoError(t, err)

	prompt := gen.prompts[0].Messages()[0].Content()
	assert.Contains(t, prompt, "- security\n")
	assert.NotContains(t, prompt, "- correctness\n")
}

func TestEnrich(t *testing.T) {
	gen := &fakeGenerator{classifyOut: `["correctness"]`}
	e := New(gen)

	record := review.NewRawRecord("openshift/api", 7, "types.go", "> bot says hi\nAdd   validation here.", "@@ -1 +1 @@")
	got, err := e.Enrich(context.Background(), record)
	require.NoError(t, err)

	assert.Equal(t, "Add validation here.", got.Reduced)
	assert.Equal(t, []string{"correctness"}, got.Concerns)
	assert.Equal(t, "summary of Add validation here.", got.Summary)

	summaryReq := gen.prompts[1]
	assert.Equal(t, SummaryMaxTokens, summaryReq.MaxTokens())
	assert.Contains(t, summaryReq.Messages()[0].Content(), "Diff context:\n@@ -1 +1 @@")
	assert.Contains(t, summaryReq.Messages()[0].Content(), `["correctness"]`)

	item := got.Item([]float64{1})
	assert.Equal(t, record, item.Record())
	assert.Empty(t, item.Evidence())
	assert.True(t, item.HasEmbedding())
}

func TestEnrich_GeneratorError(t *testing.T) {
	gen := &fakeGenerator{classifyOut: "[]", failOn: "Return ONLY"}
	e := New(gen)

	_, err := e.Enrich(context.Background(), review.NewRawRecord("a/b", 1, "x.go", "c", ""))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classify concerns")
}

func records(n int) []review.RawRecord {
	out := make([]review.RawRecord, n)
	for i := range out {
		out[i] = review.NewRawRecord("a/b", i, "x.go", fmt.Sprintf("comment-%d", i), "")
	}
	return out
}

func TestEnrichAll_PreservesOrder(t *testing.T) {
	gen := &fakeGenerator{classifyOut: `["correctness"]`}
	e := New(gen, WithParallelism(4))

	var progress atomic.Int64
	got, err := e.EnrichAll(context.Background(), records(9), func(done, total int) {
		progress.Add(1)
		assert.Equal(t, 9, total)
	})
	require.NoError(t, err)
	require.Len(t, got, 9)

	for i, res := range got {
		assert.Equal(t, fmt.Sprintf("summary of comment-%d", i), res.Summary)
	}
	assert.Equal(t, int64(9), progress.Load())
	assert.Equal(t, int64(18), gen.calls.Load())
}

func TestEnrichAll_AbortsOnError(t *testing.T) {
	gen := &fakeGenerator{classifyOut: `[]`, failOn: "comment-2\n"}
	e := New(gen)

	got, err := e.EnrichAll(context.Background(), records(5), nil)
	require.Error(t, err)
	assert.Nil(t, got)
	assert.Contains(t, err.Error(), "record 2")
}

func TestEnrichAll_Empty(t *testing.T) {
	e := New(&fakeGenerator{})

	got, err := e.EnrichAll(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestCleanThinkingTags(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"plain", "plain"},
		{"<think>x</think>answer", "answer"},
		{"a<think>x</think>b<think>y</think>c", "abc"},
		{"<think>unclosed", "unclosed"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cleanThinkingTags(tt.in))
	}
}
