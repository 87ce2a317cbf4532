package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/enricher"
	"github.com/helixml/archdistill/infrastructure/provider"
)

// DefaultIngestBatchSize is the number of new records enriched and persisted
// together.
const DefaultIngestBatchSize = 50

// IngestStatus is the outcome of an ingest run.
type IngestStatus int

// IngestStatus values.
const (
	IngestStatusCompleted IngestStatus = iota
	IngestStatusNothingNew
)

// String returns the status name.
func (s IngestStatus) String() string {
	if s == IngestStatusNothingNew {
		return "nothing_new"
	}
	return "completed"
}

// IngestReport summarizes an ingest run.
type IngestReport struct {
	Status   IngestStatus
	Loaded   int
	New      int
	Added    int
	Duration time.Duration
}

// IngestHooks receives progress from Ingest.Run. Nil fields are ignored.
type IngestHooks struct {
	// Found is called once the gate has selected the new records.
	Found func(n int)
	// Enriched is called after each record is classified and summarized.
	Enriched func(done, total int)
}

// Ingest loads review records, keeps the ones not stored yet, enriches and
// embeds them, and appends them to the store.
type Ingest struct {
	store     review.ItemStore
	enricher  *enricher.Enricher
	embedder  provider.Embedder
	batchSize int
	logger    *slog.Logger
}

// IngestOption configures Ingest.
type IngestOption func(*Ingest)

// WithIngestBatchSize sets how many records are persisted per batch.
func WithIngestBatchSize(n int) IngestOption {
	return func(s *Ingest) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithIngestLogger sets the logger.
func WithIngestLogger(l *slog.Logger) IngestOption {
	return func(s *Ingest) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewIngest creates an Ingest service.
func NewIngest(store review.ItemStore, enr *enricher.Enricher, embedder provider.Embedder, opts ...IngestOption) *Ingest {
	s := &Ingest{
		store:     store,
		enricher:  enr,
		embedder:  embedder,
		batchSize: DefaultIngestBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run ingests the records of src. Zero new records is reported through
// IngestStatusNothingNew, not as an error. Each batch is committed before the
// next starts, so a failed run keeps its earlier batches and a rerun skips them.
func (s *Ingest) Run(ctx context.Context, src review.RecordSource, hooks IngestHooks) (IngestReport, error) {
	start := time.Now()

	records, err := src.Records(ctx)
	if err != nil {
		return IngestReport{}, fmt.Errorf("load records: %w", err)
	}
	report := IngestReport{Loaded: len(records)}
	s.logger.Info("loaded records", slog.Int("count", len(records)))

	fresh, err := s.store.NewRecords(ctx, records)
	if err != nil {
		return report, fmt.Errorf("detect new records: %w", err)
	}
	report.New = len(fresh)
	s.logger.Info("detected new records",
		slog.Int("new", len(fresh)),
		slog.Int("existing_or_duplicate", len(records)-len(fresh)),
	)

	if hooks.Found != nil {
		hooks.Found(len(fresh))
	}
	if len(fresh) == 0 {
		report.Status = IngestStatusNothingNew
		report.Duration = time.Since(start)
		return report, nil
	}

	for offset := 0; offset < len(fresh); offset += s.batchSize {
		batch := fresh[offset:min(offset+s.batchSize, len(fresh))]

		added, err := s.ingestBatch(ctx, batch, func(done, _ int) {
			if hooks.Enriched != nil {
				hooks.Enriched(offset+done, len(fresh))
			}
		})
		report.Added += added
		if err != nil {
			report.Duration = time.Since(start)
			return report, err
		}
	}

	report.Status = IngestStatusCompleted
	report.Duration = time.Since(start)
	s.logger.Info("ingest complete",
		slog.Int("added", report.Added),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

func (s *Ingest) ingestBatch(ctx context.Context, batch []review.RawRecord, progress func(done, total int)) (int, error) {
	enriched, err := s.enricher.EnrichAll(ctx, batch, progress)
	if err != nil {
		return 0, fmt.Errorf("enrich records: %w", err)
	}

	summaries := make([]string, len(enriched))
	for i, e := range enriched {
		summaries[i] = e.Summary
	}
	vecs, err := embedTexts(ctx, s.embedder, summaries)
	if err != nil {
		return 0, fmt.Errorf("embed summaries: %w", err)
	}

	items := make([]review.EnrichedItem, len(enriched))
	for i, e := range enriched {
		items[i] = e.Item(vecs[i])
	}
	if err := s.store.InsertAll(ctx, items); err != nil {
		return 0, fmt.Errorf("insert items: %w", err)
	}
	return len(items), nil
}
