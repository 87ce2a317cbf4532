package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/provider"
)

// defaultEmbedBatch is used when the embedder does not report a capacity.
const defaultEmbedBatch = 10

// embedTexts embeds texts in order, splitting them into batches no larger
// than the embedder's capacity.
func embedTexts(ctx context.Context, embedder provider.Embedder, texts []string) ([][]float64, error) {
	size := defaultEmbedBatch
	if b, ok := embedder.(provider.Batcher); ok && b.Capacity() > 0 {
		size = b.Capacity()
	}

	out := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		resp, err := embedder.Embed(ctx, provider.NewEmbeddingRequest(texts[start:end]))
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		vecs := resp.Embeddings()
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed texts %d-%d: %w: got %d, want %d", start, end-1, ErrEmbeddingCount, len(vecs), end-start)
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// BackfillReport summarizes an embedding backfill.
type BackfillReport struct {
	Pending int
	Updated int
}

// Backfill embeds stored items that have no embedding yet.
type Backfill struct {
	store    review.ItemStore
	embedder provider.Embedder
	logger   *slog.Logger
}

// NewBackfill creates a Backfill service.
func NewBackfill(store review.ItemStore, embedder provider.Embedder, logger *slog.Logger) *Backfill {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backfill{store: store, embedder: embedder, logger: logger}
}

// Run embeds the snippet of every item whose embedding is null and stores
// the vector. Items are updated one batch at a time, so an interrupted run
// keeps what it finished. progress, when non-nil, is called after each batch.
func (s *Backfill) Run(ctx context.Context, progress func(done, total int)) (BackfillReport, error) {
	items, err := s.store.WithoutEmbeddings(ctx)
	if err != nil {
		return BackfillReport{}, fmt.Errorf("load items without embeddings: %w", err)
	}

	report := BackfillReport{Pending: len(items)}
	if len(items) == 0 {
		s.logger.Info("no items need embeddings")
		return report, nil
	}

	size := defaultEmbedBatch
	if b, ok := s.embedder.(provider.Batcher); ok && b.Capacity() > 0 {
		size = b.Capacity()
	}

	for start := 0; start < len(items); start += size {
		batch := items[start:min(start+size, len(items))]

		texts := make([]string, len(batch))
		for i, it := range batch {
			texts[i] = it.EmbeddingSnippet()
		}
		vecs, err := embedTexts(ctx, s.embedder, texts)
		if err != nil {
			return report, err
		}

		for i, it := range batch {
			if err := s.store.UpdateEmbedding(ctx, it.ID(), vecs[i]); err != nil {
				return report, fmt.Errorf("store embedding: %w", err)
			}
			report.Updated++
		}

		s.logger.Debug("embedded batch", slog.Int("done", report.Updated), slog.Int("total", report.Pending))
		if progress != nil {
			progress(report.Updated, report.Pending)
		}
	}

	return report, nil
}
