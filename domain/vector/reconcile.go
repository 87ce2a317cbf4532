package vector

import (
	"fmt"
	"sort"
	"strings"
)

// Report summarizes a dimension reconciliation pass.
type Report struct {
	histogram map[int]int
	order     []int
	target    int
	kept      int
	skipped   int
}

// Histogram returns a copy of the observed dimension counts.
func (r Report) Histogram() map[int]int {
	out := make(map[int]int, len(r.histogram))
	for k, v := range r.histogram {
		out[k] = v
	}
	return out
}

// Target returns the modal dimension that was kept.
func (r Report) Target() int { return r.target }

// Kept returns how many items matched the target dimension.
func (r Report) Kept() int { return r.kept }

// Skipped returns how many items were dropped for a dimension mismatch.
func (r Report) Skipped() int { return r.skipped }

// Degraded reports whether mismatches outnumber matching items, meaning the
// corpus has drifted systematically rather than by a small minority.
func (r Report) Degraded() bool { return r.skipped > r.kept }

// HistogramString renders the histogram as "768:40 384:2" sorted by dimension.
func (r Report) HistogramString() string {
	dims := make([]int, 0, len(r.histogram))
	for d := range r.histogram {
		dims = append(dims, d)
	}
	sort.Ints(dims)
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = fmt.Sprintf("%d:%d", d, r.histogram[d])
	}
	return strings.Join(parts, " ")
}

// Reconcile keeps the items whose vector length equals the most frequent
// length in the set. Ties go to the length seen first. Items are never padded
// or truncated.
func Reconcile[T any](items []T, dimension func(T) int) ([]T, Report) {
	report := Report{histogram: make(map[int]int)}
	if len(items) == 0 {
		return nil, report
	}

	for _, it := range items {
		d := dimension(it)
		if _, seen := report.histogram[d]; !seen {
			report.order = append(report.order, d)
		}
		report.histogram[d]++
	}

	best := 0
	for _, d := range report.order {
		if report.histogram[d] > best {
			best = report.histogram[d]
			report.target = d
		}
	}

	kept := make([]T, 0, best)
	for _, it := range items {
		if dimension(it) != report.target {
			report.skipped++
			continue
		}
		kept = append(kept, it)
	}
	report.kept = len(kept)
	return kept, report
}
