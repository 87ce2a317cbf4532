// Package archdistill distills code review comments into architectural
// guidelines.
//
// Review comments are collected as JSONL records, classified against a
// taxonomy of architectural concerns, summarized and embedded by an LLM, and
// stored in arch_items. Stored items are then grouped, either by k-means over
// their embeddings or in fixed-size chunks, and each group is synthesized into
// guidelines. A final pass removes near-duplicate guidelines.
//
// Basic usage:
//
//	client, err := archdistill.New(ctx,
//	    archdistill.WithSQLite("data/archdistill.db"),
//	    archdistill.WithTextProvider(generator),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	report, err := client.IngestFile(ctx, "comments.jsonl", service.IngestHooks{})
//
//	distilled, err := client.DistillClustered(ctx, "guidelines_clustered.json")
package archdistill

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/helixml/archdistill/application/service"
	"github.com/helixml/archdistill/domain/cluster"
	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/domain/review"
	"github.com/helixml/archdistill/infrastructure/corpus"
	"github.com/helixml/archdistill/infrastructure/enricher"
	"github.com/helixml/archdistill/infrastructure/persistence"
	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/helixml/archdistill/infrastructure/source"
	"github.com/helixml/archdistill/internal/config"
	"github.com/helixml/archdistill/internal/database"
)

// Client is the main entry point for the archdistill library.
type Client struct {
	db    database.Database
	store persistence.ItemStore

	ingest   *service.Ingest
	backfill *service.Backfill
	distill  *service.Distill
	dedup    *service.Dedup

	textErr  error
	embedErr error

	app            config.AppConfig
	hugotEmbedding *provider.HugotEmbedding
	closers        []io.Closer
	logger         *slog.Logger
	closed         atomic.Bool
	mu             sync.Mutex
}

// New creates a new Client with the given options. Providers are built from
// the configuration first, then the database is opened and arch_items is
// migrated unless WithSkipMigrate is given.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := newClientConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.dbURL == "" {
		return nil, ErrNoDatabase
	}
	if err := guideline.CheckThreshold(cfg.dedupThreshold); err != nil {
		return nil, err
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.appSet {
		if _, err := config.PrepareDataDir(cfg.app.DataDir()); err != nil {
			return nil, err
		}
	}

	closers := cfg.closers
	closeAll := func(err error) error {
		errs := []error{err}
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	var textErr error
	if cfg.textProvider == nil && cfg.appSet {
		gen, closer, err := textProviderFor(ctx, cfg.app.GenerationEndpoint())
		if err != nil {
			return nil, closeAll(fmt.Errorf("generation provider: %w", err))
		}
		cfg.textProvider = gen
		closers = append(closers, closer)
	}
	if cfg.textProvider == nil {
		textErr = ErrNoTextProvider
	}

	var hugotEmbedding *provider.HugotEmbedding
	var embedErr error
	if cfg.embeddingProvider == nil && cfg.appSet {
		if e := cfg.app.EmbeddingEndpoint(); e != nil {
			p, err := embeddingProviderFor(*e)
			if err != nil {
				return nil, closeAll(fmt.Errorf("embedding provider: %w", err))
			}
			cfg.embeddingProvider = p
			closers = append(closers, p)
		}
	}
	if cfg.embeddingProvider == nil {
		modelDir := cfg.modelDir
		if modelDir == "" {
			modelDir = cfg.app.ModelDir()
		}
		hugotEmbedding = provider.NewHugotEmbedding(modelDir)
		if hugotEmbedding.Available() {
			cfg.embeddingProvider = hugotEmbedding
			logger.Info("built-in embedding provider enabled", slog.String("model_dir", modelDir))
		} else {
			hugotEmbedding = nil
			embedErr = fmt.Errorf("%w: no embedding model found in %s, run download-model or configure an embedding endpoint",
				ErrNoEmbeddingProvider, modelDir)
		}
	}

	concerns := cfg.concerns
	if len(concerns) == 0 {
		loaded, err := enricher.LoadTaxonomy(cfg.app.ConcernsFile())
		if err != nil {
			return nil, closeAll(fmt.Errorf("load concerns: %w", err))
		}
		concerns = loaded
	}

	db, err := database.NewDatabase(ctx, cfg.dbURL)
	if err != nil {
		return nil, closeAll(fmt.Errorf("open database: %w", err))
	}
	closeDB := func(err error) error {
		return errors.Join(closeAll(err), db.Close())
	}

	if !cfg.skipMigrate {
		if err := persistence.Migrate(ctx, db, logger); err != nil {
			return nil, closeDB(fmt.Errorf("migrate: %w", err))
		}
	}

	store := persistence.NewItemStore(db)
	guidelines := corpus.NewFile()

	client := &Client{
		db:             db,
		store:          store,
		textErr:        textErr,
		embedErr:       embedErr,
		app:            cfg.app,
		hugotEmbedding: hugotEmbedding,
		closers:        closers,
		logger:         logger,
	}

	client.dedup = service.NewDedup(
		guidelines,
		guideline.NewDeduplicator(guideline.WithThreshold(cfg.dedupThreshold), guideline.WithLogger(logger)),
		logger,
	)

	if cfg.embeddingProvider != nil {
		client.backfill = service.NewBackfill(store, cfg.embeddingProvider, logger)
	}

	if cfg.textProvider != nil {
		synth := service.NewSynthesizer(cfg.textProvider,
			service.WithSynthesisMaxTokens(cfg.distill.MaxTokens()),
			service.WithSynthesisParallelism(cfg.synthesisParallelism),
			service.WithSynthesisLogger(logger),
		)
		client.distill = service.NewDistill(store, synth, guidelines,
			service.WithChunkSize(cfg.distill.ChunkSize()),
			service.WithMaxClusterItems(cfg.distill.MaxClusterItems()),
			service.WithClusterOptions(
				cluster.WithSeed(cfg.distill.Seed()),
				cluster.WithRestarts(cfg.distill.Restarts()),
			),
			service.WithDistillLogger(logger),
		)

		if cfg.embeddingProvider != nil {
			enr := enricher.New(cfg.textProvider,
				enricher.WithConcerns(concerns),
				enricher.WithParallelism(cfg.enricherParallelism),
				enricher.WithLogger(logger),
			)
			ingestOpts := []service.IngestOption{service.WithIngestLogger(logger)}
			if cfg.ingestBatchSize > 0 {
				ingestOpts = append(ingestOpts, service.WithIngestBatchSize(cfg.ingestBatchSize))
			}
			client.ingest = service.NewIngest(store, enr, cfg.embeddingProvider, ingestOpts...)
		}
	}

	return client, nil
}

// Ingest enriches and stores the records from src that are not stored yet.
func (c *Client) Ingest(ctx context.Context, src review.RecordSource, hooks service.IngestHooks) (service.IngestReport, error) {
	if c.closed.Load() {
		return service.IngestReport{}, ErrClientClosed
	}
	if err := c.needs(c.textErr, c.embedErr); err != nil {
		return service.IngestReport{}, err
	}
	return c.ingest.Run(ctx, src, hooks)
}

// IngestFile ingests a JSONL file of review records.
func (c *Client) IngestFile(ctx context.Context, path string, hooks service.IngestHooks) (service.IngestReport, error) {
	return c.Ingest(ctx, source.NewFile(path), hooks)
}

// Embed fills in embeddings for stored items that have none.
func (c *Client) Embed(ctx context.Context, progress func(done, total int)) (service.BackfillReport, error) {
	if c.closed.Load() {
		return service.BackfillReport{}, ErrClientClosed
	}
	if err := c.needs(c.embedErr); err != nil {
		return service.BackfillReport{}, err
	}
	return c.backfill.Run(ctx, progress)
}

// DistillClustered synthesizes guidelines per embedding cluster and writes
// them to output. An empty output uses the configured default path.
func (c *Client) DistillClustered(ctx context.Context, output string) (service.DistillReport, error) {
	if c.closed.Load() {
		return service.DistillReport{}, ErrClientClosed
	}
	if err := c.needs(c.textErr); err != nil {
		return service.DistillReport{}, err
	}
	if output == "" {
		output = c.app.ClusteredGuidelinesPath()
	}
	return c.distill.Clustered(ctx, output)
}

// DistillChunked synthesizes guidelines per fixed-size chunk of stored items
// and writes them to output. An empty output uses the configured default path.
func (c *Client) DistillChunked(ctx context.Context, output string) (service.DistillReport, error) {
	if c.closed.Load() {
		return service.DistillReport{}, ErrClientClosed
	}
	if err := c.needs(c.textErr); err != nil {
		return service.DistillReport{}, err
	}
	if output == "" {
		output = c.app.ChunkedGuidelinesPath()
	}
	return c.distill.Chunked(ctx, output)
}

// Dedup removes near-duplicate guidelines from input and writes the result
// to output. Empty paths use the configured defaults.
func (c *Client) Dedup(input, output string, dryRun bool) (service.DedupReport, error) {
	if c.closed.Load() {
		return service.DedupReport{}, ErrClientClosed
	}
	if input == "" {
		input = c.app.ChunkedGuidelinesPath()
	}
	if output == "" {
		output = c.app.DedupedGuidelinesPath()
	}
	return c.dedup.Run(input, output, dryRun)
}

// Migrate creates arch_items or converts it to the expected column types.
func (c *Client) Migrate(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClientClosed
	}
	return persistence.Migrate(ctx, c.db, c.logger)
}

// ValidateSchema reports arch_items columns that differ from the expected
// types.
func (c *Client) ValidateSchema(ctx context.Context) ([]persistence.ColumnMismatch, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	return persistence.ValidateSchema(ctx, c.db)
}

// Count returns the number of stored items.
func (c *Client) Count(ctx context.Context) (int64, error) {
	if c.closed.Load() {
		return 0, ErrClientClosed
	}
	return c.store.Count(ctx)
}

// Logger returns the client's logger.
func (c *Client) Logger() *slog.Logger {
	return c.logger
}

// Close releases providers and the database.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return ErrClientClosed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hugotEmbedding != nil {
		if err := c.hugotEmbedding.Close(); err != nil {
			c.logger.Error("failed to close hugot embedding", slog.Any("error", err))
		}
	}

	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			c.logger.Error("failed to close resource", slog.Any("error", err))
		}
	}

	if err := c.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// needs returns the first provider error that blocks an operation.
func (c *Client) needs(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
