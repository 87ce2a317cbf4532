package database

import (
	"database/sql/driver"
	"strconv"
	"strings"
)

// PgVector wraps a float64 slice for writing to a pgvector VECTOR column.
// It serialises to the text literal "[1,2,3]", which pgvector parses and
// SQLite stores verbatim. A nil vector is written as NULL.
type PgVector struct {
	floats []float64
}

// NewPgVector creates a PgVector from a float64 slice. The input is copied.
func NewPgVector(floats []float64) PgVector {
	if floats == nil {
		return PgVector{}
	}
	cp := make([]float64, len(floats))
	copy(cp, floats)
	return PgVector{floats: cp}
}

// Floats returns a copy of the underlying values, or nil for a NULL vector.
func (v PgVector) Floats() []float64 {
	if v.floats == nil {
		return nil
	}
	cp := make([]float64, len(v.floats))
	copy(cp, v.floats)
	return cp
}

// Dimension returns the number of elements in the vector.
func (v PgVector) Dimension() int {
	return len(v.floats)
}

// Value implements driver.Valuer.
func (v PgVector) Value() (driver.Value, error) {
	if v.floats == nil {
		return nil, nil
	}
	return v.String(), nil
}

// String returns the vector literal "[1,2,3]".
func (v PgVector) String() string {
	var b strings.Builder
	b.Grow(len(v.floats)*12 + 2)
	b.WriteByte('[')
	for i, f := range v.floats {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
	}
	b.WriteByte(']')
	return b.String()
}

// RawValue scans any column value without interpreting it. Byte slices are
// copied, since drivers may reuse the backing array after Scan returns.
type RawValue struct {
	value any
}

// Scan implements sql.Scanner.
func (r *RawValue) Scan(value any) error {
	if b, ok := value.([]byte); ok {
		cp := make([]byte, len(b))
		copy(cp, b)
		r.value = cp
		return nil
	}
	r.value = value
	return nil
}

// Get returns the scanned value.
func (r RawValue) Get() any {
	return r.value
}
