package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/helixml/archdistill/domain/cluster"
	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/domain/vector"
)

// Defaults for Distill.
const (
	DefaultChunkSize       = 5
	DefaultMaxClusterItems = 40
)

// DistillStatus is the outcome of a distillation run.
type DistillStatus int

// DistillStatus values. Every status other than Completed means the run
// stopped early for lack of data and wrote nothing.
const (
	DistillStatusCompleted DistillStatus = iota
	DistillStatusNoEmbeddings
	DistillStatusNoUsableEmbeddings
	DistillStatusNotEnoughData
	DistillStatusNoItems
)

// String returns the status name.
func (s DistillStatus) String() string {
	switch s {
	case DistillStatusNoEmbeddings:
		return "no_embeddings"
	case DistillStatusNoUsableEmbeddings:
		return "no_usable_embeddings"
	case DistillStatusNotEnoughData:
		return "not_enough_data"
	case DistillStatusNoItems:
		return "no_items"
	default:
		return "completed"
	}
}

// DistillReport summarizes a distillation run.
type DistillReport struct {
	Status DistillStatus
	// Loaded counts the rows read from the store.
	Loaded int
	// Unparseable counts embeddings that could not be decoded.
	Unparseable int
	// Dimensions is the reconciliation outcome. Clustered mode only.
	Dimensions vector.Report
	// Clusters is the number of clusters formed. Clustered mode only.
	Clusters int
	Batch    BatchReport
	Output   string
	Duration time.Duration
}

// Distill turns stored items into a guideline corpus.
type Distill struct {
	store           review.ItemStore
	synthesizer     *Synthesizer
	corpus          guideline.Corpus
	chunkSize       int
	maxClusterItems int
	clusterOpts     []cluster.Option
	logger          *slog.Logger
}

// DistillOption configures Distill.
type DistillOption func(*Distill)

// WithChunkSize sets the items per prompt in chunked mode.
func WithChunkSize(n int) DistillOption {
	return func(d *Distill) {
		if n > 0 {
			d.chunkSize = n
		}
	}
}

// WithMaxClusterItems caps the members sent per cluster prompt.
func WithMaxClusterItems(n int) DistillOption {
	return func(d *Distill) {
		if n > 0 {
			d.maxClusterItems = n
		}
	}
}

// WithClusterOptions passes options to the cluster planner.
func WithClusterOptions(opts ...cluster.Option) DistillOption {
	return func(d *Distill) {
		d.clusterOpts = append(d.clusterOpts, opts...)
	}
}

// WithDistillLogger sets the logger.
func WithDistillLogger(l *slog.Logger) DistillOption {
	return func(d *Distill) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDistill creates a Distill service.
func NewDistill(store review.ItemStore, synthesizer *Synthesizer, corpus guideline.Corpus, opts ...DistillOption) *Distill {
	d := &Distill{
		store:           store,
		synthesizer:     synthesizer,
		corpus:          corpus,
		chunkSize:       DefaultChunkSize,
		maxClusterItems: DefaultMaxClusterItems,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type decodedCandidate struct {
	item   SynthesisItem
	vector []float64
}

// Clustered groups embedded items with k-means, asks the model for
// guidelines per cluster and writes them to output.
func (d *Distill) Clustered(ctx context.Context, output string) (DistillReport, error) {
	start := time.Now()
	report := DistillReport{Output: output}
	finish := func(status DistillStatus) (DistillReport, error) {
		report.Status = status
		report.Duration = time.Since(start)
		return report, nil
	}

	candidates, err := d.store.Candidates(ctx)
	if err != nil {
		return report, fmt.Errorf("load embedded items: %w", err)
	}
	report.Loaded = len(candidates)
	d.logger.Info("loaded rows with embeddings", slog.Int("count", len(candidates)))
	if len(candidates) == 0 {
		return finish(DistillStatusNoEmbeddings)
	}

	decoded := make([]decodedCandidate, 0, len(candidates))
	for _, c := range candidates {
		v := vector.Decode(c.RawEmbedding())
		if !v.OK() {
			report.Unparseable++
			d.logger.Warn("unparseable embedding",
				slog.Int64("id", c.ID()),
				slog.String("representation", v.Representation().String()),
				slog.String("reason", v.Reason()),
			)
			continue
		}
		decoded = append(decoded, decodedCandidate{
			item:   SynthesisItem{ID: c.ID(), Concerns: c.Concerns(), Summary: c.Summary(), Evidence: c.Evidence()},
			vector: v.Values(),
		})
	}
	if len(decoded) == 0 {
		return finish(DistillStatusNoUsableEmbeddings)
	}

	kept, dims := vector.Reconcile(decoded, func(c decodedCandidate) int { return len(c.vector) })
	report.Dimensions = dims
	d.logger.Info("embedding dimension distribution",
		slog.String("histogram", dims.HistogramString()),
		slog.Int("target", dims.Target()),
		slog.Int("kept", dims.Kept()),
		slog.Int("skipped", dims.Skipped()),
	)
	if dims.Degraded() {
		d.logger.Warn("most embeddings do not match the modal dimension; the store is likely mixing embedding models",
			slog.String("histogram", dims.HistogramString()),
			slog.Int("kept", dims.Kept()),
			slog.Int("skipped", dims.Skipped()),
		)
	}
	if len(kept) < cluster.MinItems {
		return finish(DistillStatusNotEnoughData)
	}

	vectors := make([][]float64, len(kept))
	for i, c := range kept {
		vectors[i] = c.vector
	}
	plan, err := cluster.PlanFor(vectors, d.clusterOpts...)
	if errors.Is(err, cluster.ErrNotEnoughData) {
		return finish(DistillStatusNotEnoughData)
	}
	if err != nil {
		return report, fmt.Errorf("cluster embeddings: %w", err)
	}
	report.Clusters = len(plan.Clusters())
	d.logger.Info("formed clusters", slog.Int("items", len(kept)), slog.Int("k", plan.K()), slog.Int("clusters", report.Clusters))

	units := make([]Unit, 0, report.Clusters)
	for i, c := range plan.Clusters() {
		members := c.Members()
		if len(members) > d.maxClusterItems {
			d.logger.Info("cluster truncated for prompt",
				slog.Int("cluster", c.Label()),
				slog.Int("members", len(members)),
				slog.Int("max", d.maxClusterItems),
			)
			members = members[:d.maxClusterItems]
		}
		items := make([]SynthesisItem, len(members))
		for j, m := range members {
			items[j] = kept[m].item
		}
		units = append(units, Unit{Index: i, Label: c.Label(), Items: items})
	}

	results, err := d.synthesizer.Clustered(ctx, units)
	if err != nil {
		return report, fmt.Errorf("synthesize clusters: %w", err)
	}
	report.Batch = Collect(results, d.logger)

	if err := d.corpus.Write(output, report.Batch.Guidelines); err != nil {
		return report, fmt.Errorf("write guidelines: %w", err)
	}
	d.logger.Info("saved guidelines", slog.Int("count", len(report.Batch.Guidelines)), slog.String("path", output))
	return finish(DistillStatusCompleted)
}

// Chunked splits every stored item into fixed-size chunks, asks the model
// for guidelines per chunk and writes them to output.
func (d *Distill) Chunked(ctx context.Context, output string) (DistillReport, error) {
	start := time.Now()
	report := DistillReport{Output: output}

	items, err := d.store.All(ctx)
	if err != nil {
		return report, fmt.Errorf("load items: %w", err)
	}
	report.Loaded = len(items)
	d.logger.Info("loaded rows", slog.Int("count", len(items)))
	if len(items) == 0 {
		report.Status = DistillStatusNoItems
		report.Duration = time.Since(start)
		return report, nil
	}

	var units []Unit
	for offset := 0; offset < len(items); offset += d.chunkSize {
		chunk := items[offset:min(offset+d.chunkSize, len(items))]
		unit := Unit{Index: len(units), Label: len(units) + 1, Items: make([]SynthesisItem, len(chunk))}
		for i, it := range chunk {
			unit.Items[i] = SynthesisItem{ID: it.ID(), Concerns: it.Concerns(), Summary: it.Summary(), Evidence: it.Evidence()}
		}
		units = append(units, unit)
	}

	results, err := d.synthesizer.Chunked(ctx, units)
	if err != nil {
		return report, fmt.Errorf("synthesize chunks: %w", err)
	}
	report.Batch = Collect(results, d.logger)

	if err := d.corpus.Write(output, report.Batch.Guidelines); err != nil {
		return report, fmt.Errorf("write guidelines: %w", err)
	}
	d.logger.Info("saved guidelines", slog.Int("count", len(report.Batch.Guidelines)), slog.String("path", output))

	report.Status = DistillStatusCompleted
	report.Duration = time.Since(start)
	return report, nil
}
