package review

import "context"

// ItemStore persists enriched items keyed by RawRecord identity.
type ItemStore interface {
	// NewRecords returns the records whose identity key is not yet stored.
	NewRecords(ctx context.Context, records []RawRecord) ([]RawRecord, error)
	// InsertAll appends enriched items.
	InsertAll(ctx context.Context, items []EnrichedItem) error
	// Candidates returns every item with a non-null embedding.
	Candidates(ctx context.Context) ([]Candidate, error)
	// All returns every stored item in id order.
	All(ctx context.Context) ([]EnrichedItem, error)
	// WithoutEmbeddings returns items whose embedding is null.
	WithoutEmbeddings(ctx context.Context) ([]EnrichedItem, error)
	// UpdateEmbedding sets the embedding of one item.
	UpdateEmbedding(ctx context.Context, id int64, embedding []float64) error
	// Count returns the number of stored items.
	Count(ctx context.Context) (int64, error)
}

// RecordSource yields freshly collected records.
type RecordSource interface {
	Records(ctx context.Context) ([]RawRecord, error)
}
