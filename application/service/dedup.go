package service

import (
	"fmt"
	"log/slog"

	"github.com/helixml/archdistill/domain/guideline"
)

// DedupReport summarizes a deduplication run.
type DedupReport struct {
	Input    string
	Output   string
	DryRun   bool
	Written  bool
	Stats    guideline.Stats
	Removals []guideline.Removal
	// Original holds the input corpus, so removals can be described by index.
	Original []guideline.Guideline
}

// Dedup removes exact and near-duplicate guidelines from a corpus file.
type Dedup struct {
	corpus       guideline.Corpus
	deduplicator *guideline.Deduplicator
	logger       *slog.Logger
}

// NewDedup creates a Dedup service.
func NewDedup(corpus guideline.Corpus, deduplicator *guideline.Deduplicator, logger *slog.Logger) *Dedup {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dedup{corpus: corpus, deduplicator: deduplicator, logger: logger}
}

// Run reads input, removes duplicates and writes the survivors to output.
// A dry run reports what would be removed and writes nothing. When nothing
// is removed and output is input, the file is left untouched.
func (s *Dedup) Run(input, output string, dryRun bool) (DedupReport, error) {
	report := DedupReport{Input: input, Output: output, DryRun: dryRun}

	gs, err := s.corpus.Read(input)
	if err != nil {
		return report, fmt.Errorf("load guidelines: %w", err)
	}
	report.Original = gs
	s.logger.Info("loaded guidelines", slog.Int("count", len(gs)), slog.String("path", input))

	kept, removals, stats := s.deduplicator.Apply(gs)
	report.Removals = removals
	report.Stats = stats
	s.logger.Info("found duplicates",
		slog.Int("removed", stats.Removed),
		slog.Float64("threshold", s.deduplicator.Threshold()),
	)

	if dryRun {
		return report, nil
	}
	if stats.Removed == 0 && input == output {
		return report, nil
	}

	if err := s.corpus.Write(output, kept); err != nil {
		return report, fmt.Errorf("write guidelines: %w", err)
	}
	report.Written = true
	s.logger.Info("saved deduplicated guidelines",
		slog.Int("count", stats.Kept()),
		slog.String("path", output),
		slog.String("reduction", fmt.Sprintf("%.1f%%", stats.Reduction())),
	)
	return report, nil
}
