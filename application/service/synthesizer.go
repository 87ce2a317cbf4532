package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/helixml/archdistill/internal/extract"
)

// DefaultSynthesisMaxTokens is the generation budget per synthesis prompt.
const DefaultSynthesisMaxTokens = 4000

// Errors recorded on a UnitResult.
var (
	ErrNotObject = errors.New("model output is not a json object")
	ErrNotArray  = errors.New("model output is not a json array")
)

// SynthesisItem is one stored item as presented to the model.
type SynthesisItem struct {
	ID       int64
	Concerns []string
	Summary  string
	Evidence string
}

// Unit is one prompt's worth of items: a cluster or a chunk.
type Unit struct {
	Index int
	Label int
	Items []SynthesisItem
}

// Name identifies the unit in logs.
func (u Unit) Name(kind string) string {
	return fmt.Sprintf("%s %d", kind, u.Label)
}

// UnitResult is the outcome of synthesizing one unit. A non-nil Err means the
// model output could not be used; RawPreview then holds its first characters.
type UnitResult struct {
	Unit        Unit
	Guidelines  []guideline.Guideline
	ClusterName string
	Err         error
	RawPreview  string
}

// BatchReport aggregates unit results.
type BatchReport struct {
	Units      int
	Succeeded  int
	Failed     int
	Guidelines []guideline.Guideline
}

// Collect concatenates the guidelines of successful units in unit order and
// logs every failure.
func Collect(results []UnitResult, logger *slog.Logger) BatchReport {
	if logger == nil {
		logger = slog.Default()
	}
	report := BatchReport{Units: len(results), Guidelines: []guideline.Guideline{}}
	for _, r := range results {
		if r.Err != nil {
			report.Failed++
			logger.Error("failed to extract guidelines",
				slog.Int("unit", r.Unit.Label),
				slog.String("error", r.Err.Error()),
				slog.String("raw", r.RawPreview),
			)
			continue
		}
		report.Succeeded++
		report.Guidelines = append(report.Guidelines, r.Guidelines...)
	}
	return report
}

// Synthesizer prompts a generative model to turn groups of enriched items
// into guidelines.
type Synthesizer struct {
	generator   provider.TextGenerator
	maxTokens   int
	parallelism int
	logger      *slog.Logger
}

// SynthesizerOption configures a Synthesizer.
type SynthesizerOption func(*Synthesizer)

// WithSynthesisMaxTokens sets the generation budget per prompt.
func WithSynthesisMaxTokens(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithSynthesisParallelism sets how many units are prompted concurrently.
func WithSynthesisParallelism(n int) SynthesizerOption {
	return func(s *Synthesizer) {
		if n > 0 {
			s.parallelism = n
		}
	}
}

// WithSynthesisLogger sets the logger.
func WithSynthesisLogger(l *slog.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(generator provider.TextGenerator, opts ...SynthesizerOption) *Synthesizer {
	s := &Synthesizer{
		generator:   generator,
		maxTokens:   DefaultSynthesisMaxTokens,
		parallelism: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Clustered derives guidelines per cluster. The model returns an object with
// a cluster_name and a guidelines list; every guideline is tagged with the
// cluster name, which defaults to "cluster-<label>".
func (s *Synthesizer) Clustered(ctx context.Context, units []Unit) ([]UnitResult, error) {
	return s.run(ctx, units, "cluster", buildClusterPrompt, parseCluster)
}

// Chunked derives guidelines per chunk. The model returns a bare array of
// guideline objects, which are kept untagged.
func (s *Synthesizer) Chunked(ctx context.Context, units []Unit) ([]UnitResult, error) {
	return s.run(ctx, units, "chunk", buildChunkPrompt, parseChunk)
}

type promptFunc func([]SynthesisItem) (string, error)

type parseFunc func(u Unit, raw string, logger *slog.Logger) UnitResult

// run prompts every unit with bounded concurrency. Malformed output fails
// only its unit; a generator error aborts the whole run. Results are in unit
// order regardless of completion order.
func (s *Synthesizer) run(ctx context.Context, units []Unit, kind string, prompt promptFunc, parse parseFunc) ([]UnitResult, error) {
	results := make([]UnitResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for i, u := range units {
		g.Go(func() error {
			text, err := prompt(u.Items)
			if err != nil {
				return err
			}

			s.logger.Info("calling model", slog.String("unit", u.Name(kind)), slog.Int("items", len(u.Items)))
			resp, err := s.generator.ChatCompletion(gctx, provider.Prompt(text, s.maxTokens))
			if err != nil {
				return fmt.Errorf("%s: %w", u.Name(kind), err)
			}

			raw := resp.Content()
			s.logger.Debug("model returned", slog.String("unit", u.Name(kind)), slog.Int("chars", len(raw)))

			res := parse(u, raw, s.logger)
			if res.Err == nil {
				s.logger.Info("extracted guidelines",
					slog.String("unit", u.Name(kind)),
					slog.String("cluster_name", res.ClusterName),
					slog.Int("guidelines", len(res.Guidelines)),
				)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseCluster(u Unit, raw string, logger *slog.Logger) UnitResult {
	res := UnitResult{Unit: u}

	obj, err := extract.Object(raw)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrNotObject, err)
		res.RawPreview = extract.Preview(raw)
		return res
	}

	res.ClusterName = fmt.Sprintf("cluster-%d", u.Label)
	if name, ok := obj["cluster_name"]; ok && name != nil {
		res.ClusterName = fmt.Sprint(name)
	}

	var entries []any
	switch v := obj["guidelines"].(type) {
	case nil:
	case []any:
		entries = v
	default:
		logger.Warn("guidelines field is not a list, wrapping", slog.Int("unit", u.Label))
		entries = []any{v}
	}

	res.Guidelines = toGuidelines(entries, u, logger)
	for i := range res.Guidelines {
		res.Guidelines[i].ClusterID = res.ClusterName
	}
	return res
}

func parseChunk(u Unit, raw string, logger *slog.Logger) UnitResult {
	res := UnitResult{Unit: u}

	entries, err := extract.Array(raw)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrNotArray, err)
		res.RawPreview = extract.Preview(raw)
		return res
	}

	res.Guidelines = toGuidelines(entries, u, logger)
	return res
}

// toGuidelines converts decoded entries, dropping any that are not objects.
func toGuidelines(entries []any, u Unit, logger *slog.Logger) []guideline.Guideline {
	out := make([]guideline.Guideline, 0, len(entries))
	for i, e := range entries {
		g, err := guideline.FromValue(e)
		if err != nil {
			logger.Warn("dropping malformed guideline",
				slog.Int("unit", u.Label),
				slog.Int("entry", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		out = append(out, g)
	}
	return out
}
