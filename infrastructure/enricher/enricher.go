// Package enricher derives concern labels and architectural summaries from
// review comments with a generative model.
package enricher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/semaphore"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/helixml/archdistill/internal/extract"
)

// Token budgets per prompt.
const (
	ClassifyMaxTokens = 500
	SummaryMaxTokens  = 600
)

// Enrichment is the model-derived part of an EnrichedItem.
type Enrichment struct {
	Record   review.RawRecord
	Reduced  string
	Concerns []string
	Summary  string
}

// Item converts the enrichment into an unpersisted EnrichedItem.
func (e Enrichment) Item(embedding []float64) review.EnrichedItem {
	return review.NewEnrichedItem(e.Record, e.Concerns, e.Summary, "", embedding)
}

// Enricher classifies and summarizes review comments.
type Enricher struct {
	generator   provider.TextGenerator
	concerns    []string
	parallelism int
	log         *slog.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithConcerns sets the concern taxonomy listed in the classification prompt.
func WithConcerns(concerns []string) Option {
	return func(e *Enricher) {
		if len(concerns) > 0 {
			e.concerns = append([]string(nil), concerns...)
		}
	}
}

// WithParallelism sets how many records are enriched concurrently.
func WithParallelism(n int) Option {
	return func(e *Enricher) {
		if n > 0 {
			e.parallelism = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Enricher) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Enricher over generator.
func New(generator provider.TextGenerator, opts ...Option) *Enricher {
	e := &Enricher{
		generator:   generator,
		concerns:    append([]string(nil), review.DefaultConcerns...),
		parallelism: 1,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Concerns returns the taxonomy in use.
func (e *Enricher) Concerns() []string {
	return append([]string(nil), e.concerns...)
}

// Classify asks the model which concerns apply to a reduced comment. Output
// that holds no parseable JSON array becomes a single label carrying the
// trimmed raw text.
func (e *Enricher) Classify(ctx context.Context, comment string) ([]string, error) {
	resp, err := e.generator.ChatCompletion(ctx, provider.Prompt(buildClassifyPrompt(e.concerns, comment), ClassifyMaxTokens))
	if err != nil {
		return nil, fmt.Errorf("classify concerns: %w", err)
	}

	out := strings.TrimSpace(cleanThinkingTags(resp.Content()))
	values, err := extract.Array(out)
	if err != nil {
		e.log.Debug("concern output is not a json array, keeping raw text",
			slog.String("error", err.Error()),
			slog.String("raw", extract.Preview(out)),
		)
		return []string{out}, nil
	}
	return review.NormalizeConcerns(values), nil
}

// Summarize asks the model for a short architectural summary of a comment.
func (e *Enricher) Summarize(ctx context.Context, diff, comment string, concerns []string) (string, error) {
	resp, err := e.generator.ChatCompletion(ctx, provider.Prompt(buildSummaryPrompt(diff, comment, concerns), SummaryMaxTokens))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return strings.TrimSpace(cleanThinkingTags(resp.Content())), nil
}

// Enrich reduces, classifies and summarizes one record.
func (e *Enricher) Enrich(ctx context.Context, record review.RawRecord) (Enrichment, error) {
	reduced := review.ReduceComment(record.CommentBody())

	concerns, err := e.Classify(ctx, reduced)
	if err != nil {
		return Enrichment{}, err
	}

	summary, err := e.Summarize(ctx, record.DiffContext(), reduced, concerns)
	if err != nil {
		return Enrichment{}, err
	}

	return Enrichment{
		Record:   record,
		Reduced:  reduced,
		Concerns: concerns,
		Summary:  summary,
	}, nil
}

// EnrichAll enriches records with bounded concurrency and returns the results
// in input order. The first model error cancels the remaining work. progress,
// when non-nil, is called after each completed record.
func (e *Enricher) EnrichAll(ctx context.Context, records []review.RawRecord, progress func(done, total int)) ([]Enrichment, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	results := make([]Enrichment, len(records))
	sem := semaphore.NewWeighted(int64(e.parallelism))
	done := make(chan int, len(records))

	launched := 0
	for i, r := range records {
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		launched++
		go func() {
			defer sem.Release(1)
			res, err := e.Enrich(ctx, r)
			if err != nil {
				cancel(fmt.Errorf("record %d (%s#%d %s): %w", i, r.Repo(), r.PRNumber(), r.FilePath(), err))
				done <- -1
				return
			}
			results[i] = res
			done <- i
		}()
	}

	completed := 0
	for range launched {
		if idx := <-done; idx >= 0 {
			completed++
			if progress != nil {
				progress(completed, len(records))
			}
		}
	}

	if err := context.Cause(ctx); err != nil {
		return nil, err
	}
	return results, nil
}

// cleanThinkingTags removes <think>...</think> blocks that some models emit
// before their answer.
func cleanThinkingTags(text string) string {
	result := text
	for {
		start := strings.Index(result, "<think>")
		if start == -1 {
			return result
		}
		end := strings.Index(result, "</think>")
		if end == -1 || end < start {
			result = result[:start] + result[start+len("<think>"):]
			continue
		}
		result = result[:start] + result[end+len("</think>"):]
	}
}
