package review

import "fmt"

// EnrichedItem is a RawRecord plus the labels, summary and embedding derived
// from it. It is created once per new record and only ever gains an
// embedding afterwards.
type EnrichedItem struct {
	id        int64
	record    RawRecord
	concerns  []string
	summary   string
	evidence  string
	embedding []float64
}

// NewEnrichedItem creates an EnrichedItem that has not been persisted.
func NewEnrichedItem(record RawRecord, concerns []string, summary, evidence string, embedding []float64) EnrichedItem {
	return EnrichedItem{
		record:    record,
		concerns:  copyStrings(concerns),
		summary:   summary,
		evidence:  evidence,
		embedding: copyFloats(embedding),
	}
}

// ReconstructEnrichedItem recreates an EnrichedItem from persistence.
func ReconstructEnrichedItem(id int64, record RawRecord, concerns []string, summary, evidence string, embedding []float64) EnrichedItem {
	item := NewEnrichedItem(record, concerns, summary, evidence, embedding)
	item.id = id
	return item
}

// ID returns the store id, or zero before persistence.
func (i EnrichedItem) ID() int64 { return i.id }

// Record returns the source record.
func (i EnrichedItem) Record() RawRecord { return i.record }

// Concerns returns the concern labels in order.
func (i EnrichedItem) Concerns() []string { return copyStrings(i.concerns) }

// Summary returns the architectural summary.
func (i EnrichedItem) Summary() string { return i.summary }

// Evidence returns supporting evidence, which may be empty.
func (i EnrichedItem) Evidence() string { return i.evidence }

// Embedding returns the vector, or nil when absent.
func (i EnrichedItem) Embedding() []float64 { return copyFloats(i.embedding) }

// HasEmbedding reports whether an embedding is present.
func (i EnrichedItem) HasEmbedding() bool { return len(i.embedding) > 0 }

// WithEmbedding returns a copy with the embedding set.
func (i EnrichedItem) WithEmbedding(embedding []float64) EnrichedItem {
	i.embedding = copyFloats(embedding)
	return i
}

// EmbeddingSnippet is the text embedded when backfilling a missing vector.
func (i EnrichedItem) EmbeddingSnippet() string {
	r := i.record
	return fmt.Sprintf(`
Repo: %s
PR: %d
File: %s

Comment: %s
Diff: %s

Architectural Summary: %s
Evidence: %s
`, r.repo, r.prNumber, r.filePath, r.commentBody, r.diffContext, i.summary, i.evidence)
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func copyFloats(in []float64) []float64 {
	if in == nil {
		return nil
	}
	out := make([]float64, len(in))
	copy(out, in)
	return out
}
