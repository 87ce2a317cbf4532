package archdistill

import (
	"io"
	"log/slog"

	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/infrastructure/provider"
	"github.com/helixml/archdistill/internal/config"
)

// clientConfig holds configuration for Client construction.
// Use newClientConfig() to create with defaults from internal/config.
type clientConfig struct {
	app                  config.AppConfig
	appSet               bool
	dbURL                string
	modelDir             string
	concerns             []string
	textProvider         provider.TextGenerator
	embeddingProvider    provider.Embedder
	logger               *slog.Logger
	enricherParallelism  int
	synthesisParallelism int
	ingestBatchSize      int
	distill              config.DistillConfig
	dedupThreshold       float64
	skipMigrate          bool
	closers              []io.Closer
}

// newClientConfig creates a clientConfig with defaults from internal/config.
func newClientConfig() *clientConfig {
	return &clientConfig{
		app:                  config.NewAppConfig(),
		enricherParallelism:  config.DefaultEndpointParallelTasks,
		synthesisParallelism: config.DefaultEndpointParallelTasks,
		distill:              config.NewDistillConfig(),
		dedupThreshold:       guideline.DefaultThreshold,
	}
}

// Option configures the Client.
type Option func(*clientConfig)

// WithConfig applies an application configuration. Database URL, model
// directory, concerns file, distill tuning, dedup threshold and parallelism
// are taken from it, and providers are built from its endpoints unless
// WithTextProvider or WithEmbeddingProvider override them.
func WithConfig(cfg config.AppConfig) Option {
	return func(c *clientConfig) {
		c.app = cfg
		c.appSet = true
		c.dbURL = cfg.DBURL()
		c.modelDir = cfg.ModelDir()
		c.distill = cfg.Distill()
		c.dedupThreshold = cfg.DedupThreshold()
		c.enricherParallelism = cfg.GenerationEndpoint().NumParallelTasks()
		c.synthesisParallelism = cfg.GenerationEndpoint().NumParallelTasks()
	}
}

// WithDatabaseURL sets the database connection URL.
func WithDatabaseURL(url string) Option {
	return func(c *clientConfig) {
		c.dbURL = url
	}
}

// WithSQLite configures a SQLite database file.
func WithSQLite(path string) Option {
	return WithDatabaseURL("sqlite:///" + path)
}

// WithPostgres configures PostgreSQL with the pgvector extension.
func WithPostgres(dsn string) Option {
	return WithDatabaseURL(dsn)
}

// WithTextProvider sets a custom text generation provider.
func WithTextProvider(p provider.TextGenerator) Option {
	return func(c *clientConfig) {
		c.textProvider = p
	}
}

// WithEmbeddingProvider sets a custom embedding provider.
func WithEmbeddingProvider(p provider.Embedder) Option {
	return func(c *clientConfig) {
		c.embeddingProvider = p
	}
}

// WithModelDir sets the directory holding the built-in embedding model.
func WithModelDir(dir string) Option {
	return func(c *clientConfig) {
		c.modelDir = dir
	}
}

// WithConcerns sets the architectural concern taxonomy used for
// classification. It takes precedence over a configured concerns file.
func WithConcerns(concerns ...string) Option {
	return func(c *clientConfig) {
		c.concerns = concerns
	}
}

// WithEnricherParallelism sets how many records are enriched concurrently.
// Values <= 0 are ignored.
func WithEnricherParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.enricherParallelism = n
		}
	}
}

// WithSynthesisParallelism sets how many synthesis prompts run concurrently.
// Values <= 0 are ignored.
func WithSynthesisParallelism(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.synthesisParallelism = n
		}
	}
}

// WithIngestBatchSize sets how many new records are committed together.
// Values <= 0 are ignored.
func WithIngestBatchSize(n int) Option {
	return func(c *clientConfig) {
		if n > 0 {
			c.ingestBatchSize = n
		}
	}
}

// WithDistillConfig sets chunking, clustering and token budget parameters.
func WithDistillConfig(d config.DistillConfig) Option {
	return func(c *clientConfig) {
		c.distill = d
	}
}

// WithDedupThreshold sets the similarity above which guidelines are
// considered duplicates. New fails unless it lies in (0, 1).
func WithDedupThreshold(t float64) Option {
	return func(c *clientConfig) {
		c.dedupThreshold = t
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *clientConfig) {
		c.logger = l
	}
}

// WithSkipMigrate opens the database without creating or converting the
// arch_items table.
func WithSkipMigrate() Option {
	return func(c *clientConfig) {
		c.skipMigrate = true
	}
}

// WithCloser registers a resource to be closed when the Client shuts down.
func WithCloser(cl io.Closer) Option {
	return func(c *clientConfig) {
		c.closers = append(c.closers, cl)
	}
}
