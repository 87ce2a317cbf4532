// Package persistence provides database storage implementations.
package persistence

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/domain/vector"
	"github.com/helixml/archdistill/internal/database"
)

// ArchItemModel is a GORM model for the arch_items table.
type ArchItemModel struct {
	ID          int64       `gorm:"column:id;primaryKey;autoIncrement"`
	Repo        string      `gorm:"column:repo;type:text"`
	PR          int         `gorm:"column:pr;type:integer"`
	FilePath    string      `gorm:"column:filepath;type:text"`
	Comment     string      `gorm:"column:comment;type:text"`
	Diff        string      `gorm:"column:diff;type:text"`
	Concerns    ConcernList `gorm:"column:concerns;type:text"`
	ArchSummary string      `gorm:"column:arch_summary;type:text"`
	Evidence    string      `gorm:"column:evidence;type:text"`
	Embedding   Embedding   `gorm:"column:embedding;type:text"`
}

// TableName returns the table name.
func (ArchItemModel) TableName() string { return "arch_items" }

// ConcernList is the concerns column. It is written as a JSON array and read
// back from any encoding review.NormalizeConcerns understands.
type ConcernList []string

// Scan implements sql.Scanner.
func (c *ConcernList) Scan(value any) error {
	if value == nil {
		*c = nil
		return nil
	}
	*c = review.NormalizeConcerns(value)
	return nil
}

// Value implements driver.Valuer.
func (c ConcernList) Value() (driver.Value, error) {
	if c == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(c))
	if err != nil {
		return nil, fmt.Errorf("marshal concerns: %w", err)
	}
	return string(b), nil
}

// Embedding is the embedding column. Written values are vector literals;
// scanned values are kept in their driver encoding for vector.Decode.
type Embedding struct {
	vec database.PgVector
	raw database.RawValue
}

// NewEmbedding creates an Embedding to write. A nil slice writes NULL.
func NewEmbedding(values []float64) Embedding {
	return Embedding{vec: database.NewPgVector(values)}
}

// Value implements driver.Valuer.
func (e Embedding) Value() (driver.Value, error) {
	return e.vec.Value()
}

// Scan implements sql.Scanner.
func (e *Embedding) Scan(value any) error {
	return e.raw.Scan(value)
}

// Raw returns the scanned column value.
func (e Embedding) Raw() any {
	return e.raw.Get()
}

// itemMapper maps between review.EnrichedItem and ArchItemModel.
type itemMapper struct{}

func (itemMapper) ToDomain(e ArchItemModel) review.EnrichedItem {
	var embedding []float64
	if d := vector.Decode(e.Embedding.Raw()); d.OK() {
		embedding = d.Values()
	}
	return review.ReconstructEnrichedItem(
		e.ID,
		review.NewRawRecord(e.Repo, e.PR, e.FilePath, e.Comment, e.Diff),
		[]string(e.Concerns),
		e.ArchSummary,
		e.Evidence,
		embedding,
	)
}

func (itemMapper) ToModel(i review.EnrichedItem) ArchItemModel {
	r := i.Record()
	return ArchItemModel{
		ID:          i.ID(),
		Repo:        r.Repo(),
		PR:          r.PRNumber(),
		FilePath:    r.FilePath(),
		Comment:     r.CommentBody(),
		Diff:        r.DiffContext(),
		Concerns:    ConcernList(i.Concerns()),
		ArchSummary: i.Summary(),
		Evidence:    i.Evidence(),
		Embedding:   NewEmbedding(i.Embedding()),
	}
}

// candidateMapper maps ArchItemModel rows to review.Candidate, leaving the
// embedding undecoded.
type candidateMapper struct{}

func (candidateMapper) ToDomain(e ArchItemModel) review.Candidate {
	return review.NewCandidate(e.ID, []string(e.Concerns), e.ArchSummary, e.Evidence, e.Embedding.Raw())
}

func (candidateMapper) ToModel(c review.Candidate) ArchItemModel {
	return ArchItemModel{
		ID:          c.ID(),
		Concerns:    ConcernList(c.Concerns()),
		ArchSummary: c.Summary(),
		Evidence:    c.Evidence(),
	}
}
