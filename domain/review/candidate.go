package review

// Candidate is a stored item loaded for distillation. The embedding is kept
// exactly as the store returned it so it can be normalized in one place.
type Candidate struct {
	id           int64
	concerns     []string
	summary      string
	evidence     string
	rawEmbedding any
}

// NewCandidate creates a Candidate.
func NewCandidate(id int64, concerns []string, summary, evidence string, rawEmbedding any) Candidate {
	return Candidate{
		id:           id,
		concerns:     copyStrings(concerns),
		summary:      summary,
		evidence:     evidence,
		rawEmbedding: rawEmbedding,
	}
}

// ID returns the store id.
func (c Candidate) ID() int64 { return c.id }

// Concerns returns the normalized concern labels.
func (c Candidate) Concerns() []string { return copyStrings(c.concerns) }

// Summary returns the architectural summary.
func (c Candidate) Summary() string { return c.summary }

// Evidence returns supporting evidence.
func (c Candidate) Evidence() string { return c.evidence }

// RawEmbedding returns the stored embedding value in its original encoding.
func (c Candidate) RawEmbedding() any { return c.rawEmbedding }
