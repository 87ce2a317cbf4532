package guideline

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/pmezard/go-difflib/difflib"
)

// DefaultThreshold is the similarity ratio at or above which two guidelines
// are near-duplicates.
const DefaultThreshold = 0.85

// ErrInvalidThreshold indicates a similarity threshold outside (0, 1).
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 1 exclusive")

// CheckThreshold returns ErrInvalidThreshold unless 0 < t < 1.
func CheckThreshold(t float64) error {
	if t <= 0 || t >= 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, t)
	}
	return nil
}

// Removal records why an index was dropped.
type Removal struct {
	Index      int
	KeptIndex  int
	Similarity float64
	Exact      bool
}

// Stats summarizes a deduplication pass.
type Stats struct {
	Original int
	Removed  int
}

// Kept returns the number of surviving guidelines.
func (s Stats) Kept() int { return s.Original - s.Removed }

// Reduction returns the removed share as a percentage.
func (s Stats) Reduction() float64 {
	if s.Original == 0 {
		return 0
	}
	return float64(s.Removed) / float64(s.Original) * 100
}

// Deduplicator removes exact and near-duplicate guidelines.
type Deduplicator struct {
	threshold float64
	logger    *slog.Logger
}

// DedupOption configures a Deduplicator.
type DedupOption func(*Deduplicator)

// WithThreshold sets the similarity threshold. Callers validate user input
// with CheckThreshold; values outside (0, 1) leave the default in place.
func WithThreshold(t float64) DedupOption {
	return func(d *Deduplicator) {
		if CheckThreshold(t) == nil {
			d.threshold = t
		}
	}
}

// WithLogger sets the logger used for per-pair diagnostics.
func WithLogger(l *slog.Logger) DedupOption {
	return func(d *Deduplicator) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDeduplicator creates a Deduplicator.
func NewDeduplicator(opts ...DedupOption) *Deduplicator {
	d := &Deduplicator{
		threshold: DefaultThreshold,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Threshold returns the configured similarity threshold.
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// Find returns the removals for gs in ascending index order.
//
// Every pair i < j where neither index is already removed is compared on the
// case-folded guideline text. A pair is a duplicate when the texts are equal
// or their similarity ratio reaches the threshold. Of a duplicate pair the
// entry with the strictly longer rationale, counted in characters, survives; on equal length the
// earlier index survives. Once i is removed it takes no further part.
func (d *Deduplicator) Find(gs []Guideline) []Removal {
	removed := make([]bool, len(gs))
	var removals []Removal

	folded := make([]string, len(gs))
	rationale := make([]int, len(gs))
	for i, g := range gs {
		folded[i] = strings.ToLower(g.Guideline)
		rationale[i] = utf8.RuneCountInString(g.Rationale)
	}

	for i := range gs {
		if removed[i] {
			continue
		}
		for j := i + 1; j < len(gs); j++ {
			if removed[j] {
				continue
			}
			if folded[i] == "" || folded[j] == "" {
				continue
			}

			exact := folded[i] == folded[j]
			sim := 1.0
			if !exact {
				sim = Similarity(folded[i], folded[j])
				if sim < d.threshold {
					continue
				}
			}

			if rationale[j] > rationale[i] {
				removed[i] = true
				removals = append(removals, Removal{Index: i, KeptIndex: j, Similarity: sim, Exact: exact})
				d.logger.Debug("duplicate guideline", slog.Int("removed", i), slog.Int("kept", j), slog.Float64("similarity", sim))
				break
			}
			removed[j] = true
			removals = append(removals, Removal{Index: j, KeptIndex: i, Similarity: sim, Exact: exact})
			d.logger.Debug("duplicate guideline", slog.Int("removed", j), slog.Int("kept", i), slog.Float64("similarity", sim))
		}
	}

	slices.SortFunc(removals, func(a, b Removal) int { return cmp.Compare(a.Index, b.Index) })
	return removals
}

// Apply removes duplicates and returns the survivors in their original
// relative order.
func (d *Deduplicator) Apply(gs []Guideline) ([]Guideline, []Removal, Stats) {
	removals := d.Find(gs)
	drop := make(map[int]struct{}, len(removals))
	for _, r := range removals {
		drop[r.Index] = struct{}{}
	}

	kept := make([]Guideline, 0, len(gs)-len(drop))
	for i, g := range gs {
		if _, ok := drop[i]; ok {
			continue
		}
		kept = append(kept, g)
	}
	return kept, removals, Stats{Original: len(gs), Removed: len(removals)}
}

// Similarity returns the difflib ratio of a and b compared rune by rune.
func Similarity(a, b string) float64 {
	m := difflib.NewMatcher(runes(a), runes(b))
	return m.Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
