// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Default configuration values.
const (
	DefaultDataDir                = "data"
	DefaultLogLevel               = "INFO"
	DefaultDBName                 = "archdistill.db"
	DefaultEndpointParallelTasks  = 1
	DefaultEndpointTimeout        = 60 * time.Second
	DefaultEndpointMaxRetries     = 0
	DefaultEndpointInitialDelay   = 2 * time.Second
	DefaultEndpointBackoffFactor  = 2.0
	DefaultEndpointMaxBatchChars  = 16000
	DefaultGenerationProvider     = ProviderAnthropic
	DefaultGenerationModel        = "claude-sonnet-4-5@20250929"
	DefaultVertexRegion           = "global"
	DefaultEmbeddingDimension     = 768
	DefaultChunkSize              = 5
	DefaultMaxClusterItems        = 40
	DefaultSeed                   = 42
	DefaultRestarts               = 10
	DefaultDistillMaxTokens       = 4000
	DefaultDedupThreshold         = 0.85
	DefaultClusteredGuidelinesOut = "guidelines_clustered.json"
	DefaultChunkedGuidelinesOut   = "guidelines.json"
	DefaultDedupedGuidelinesOut   = "guidelines_deduped.json"
)

// LogFormat represents the log output format.
type LogFormat string

// LogFormat values.
const (
	LogFormatPretty LogFormat = "pretty"
	LogFormatJSON   LogFormat = "json"
)

// Provider names the client used for an endpoint.
type Provider string

// Provider values.
const (
	ProviderAnthropic Provider = "anthropic"
	ProviderOpenAI    Provider = "openai"
)

// Endpoint configures an AI service endpoint.
type Endpoint struct {
	provider          Provider
	baseURL           string
	model             string
	apiKey            string
	vertexProjectID   string
	vertexRegion      string
	numParallelTasks  int
	timeout           time.Duration
	maxRetries        int
	initialDelay      time.Duration
	backoffFactor     float64
	requestsPerSecond float64
	maxBatchChars     int
	cacheDir          string
}

// NewEndpoint creates a new Endpoint with defaults.
func NewEndpoint() Endpoint {
	return Endpoint{
		provider:         DefaultGenerationProvider,
		vertexRegion:     DefaultVertexRegion,
		numParallelTasks: DefaultEndpointParallelTasks,
		timeout:          DefaultEndpointTimeout,
		maxRetries:       DefaultEndpointMaxRetries,
		initialDelay:     DefaultEndpointInitialDelay,
		backoffFactor:    DefaultEndpointBackoffFactor,
		maxBatchChars:    DefaultEndpointMaxBatchChars,
	}
}

// Provider returns which client serves the endpoint.
func (e Endpoint) Provider() Provider { return e.provider }

// BaseURL returns the base URL for the endpoint.
func (e Endpoint) BaseURL() string { return e.baseURL }

// Model returns the model identifier.
func (e Endpoint) Model() string { return e.model }

// APIKey returns the API key.
func (e Endpoint) APIKey() string { return e.apiKey }

// VertexProjectID returns the Google Cloud project used for Vertex AI.
func (e Endpoint) VertexProjectID() string { return e.vertexProjectID }

// VertexRegion returns the Vertex AI region.
func (e Endpoint) VertexRegion() string { return e.vertexRegion }

// UsesVertex reports whether requests go through Vertex AI.
func (e Endpoint) UsesVertex() bool { return e.vertexProjectID != "" }

// NumParallelTasks returns the number of parallel tasks.
func (e Endpoint) NumParallelTasks() int { return e.numParallelTasks }

// Timeout returns the request timeout.
func (e Endpoint) Timeout() time.Duration { return e.timeout }

// MaxRetries returns the maximum retry count.
func (e Endpoint) MaxRetries() int { return e.maxRetries }

// InitialDelay returns the initial retry delay.
func (e Endpoint) InitialDelay() time.Duration { return e.initialDelay }

// BackoffFactor returns the retry backoff multiplier.
func (e Endpoint) BackoffFactor() float64 { return e.backoffFactor }

// RequestsPerSecond returns the request rate cap. Zero means unlimited.
func (e Endpoint) RequestsPerSecond() float64 { return e.requestsPerSecond }

// MaxBatchChars returns the maximum total characters per embedding batch.
func (e Endpoint) MaxBatchChars() int { return e.maxBatchChars }

// CacheDir returns the directory for cached HTTP responses, empty when disabled.
func (e Endpoint) CacheDir() string { return e.cacheDir }

// IsConfigured returns true if the endpoint has required configuration.
func (e Endpoint) IsConfigured() bool {
	return e.model != ""
}

// EndpointOption is a functional option for Endpoint.
type EndpointOption func(*Endpoint)

// WithProvider sets the provider.
func WithProvider(p Provider) EndpointOption {
	return func(e *Endpoint) { e.provider = p }
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) EndpointOption {
	return func(e *Endpoint) { e.baseURL = url }
}

// WithModel sets the model.
func WithModel(model string) EndpointOption {
	return func(e *Endpoint) { e.model = model }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) EndpointOption {
	return func(e *Endpoint) { e.apiKey = key }
}

// WithVertex routes requests through Vertex AI in the given project and region.
func WithVertex(projectID, region string) EndpointOption {
	return func(e *Endpoint) {
		e.vertexProjectID = projectID
		if region != "" {
			e.vertexRegion = region
		}
	}
}

// WithNumParallelTasks sets the parallel task count.
func WithNumParallelTasks(n int) EndpointOption {
	return func(e *Endpoint) {
		if n > 0 {
			e.numParallelTasks = n
		}
	}
}

// WithTimeout sets the request timeout.
func WithTimeout(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.timeout = d }
}

// WithMaxRetries sets the maximum retry count.
func WithMaxRetries(n int) EndpointOption {
	return func(e *Endpoint) { e.maxRetries = n }
}

// WithInitialDelay sets the initial retry delay.
func WithInitialDelay(d time.Duration) EndpointOption {
	return func(e *Endpoint) { e.initialDelay = d }
}

// WithBackoffFactor sets the retry backoff multiplier.
func WithBackoffFactor(f float64) EndpointOption {
	return func(e *Endpoint) { e.backoffFactor = f }
}

// WithRequestsPerSecond caps the request rate.
func WithRequestsPerSecond(rps float64) EndpointOption {
	return func(e *Endpoint) { e.requestsPerSecond = rps }
}

// WithMaxBatchChars sets the maximum total characters per embedding batch.
func WithMaxBatchChars(n int) EndpointOption {
	return func(e *Endpoint) { e.maxBatchChars = n }
}

// WithCacheDir caches successful responses on disk under dir.
func WithCacheDir(dir string) EndpointOption {
	return func(e *Endpoint) { e.cacheDir = dir }
}

// NewEndpointWithOptions creates an Endpoint with functional options.
func NewEndpointWithOptions(opts ...EndpointOption) Endpoint {
	e := NewEndpoint()
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

// DistillConfig tunes guideline synthesis and clustering.
type DistillConfig struct {
	chunkSize       int
	maxClusterItems int
	seed            uint64
	restarts        int
	maxTokens       int
}

// NewDistillConfig creates a DistillConfig with defaults.
func NewDistillConfig() DistillConfig {
	return DistillConfig{
		chunkSize:       DefaultChunkSize,
		maxClusterItems: DefaultMaxClusterItems,
		seed:            DefaultSeed,
		restarts:        DefaultRestarts,
		maxTokens:       DefaultDistillMaxTokens,
	}
}

// ChunkSize returns the item count per prompt in chunked mode.
func (d DistillConfig) ChunkSize() int { return d.chunkSize }

// MaxClusterItems returns the member cap per cluster prompt.
func (d DistillConfig) MaxClusterItems() int { return d.maxClusterItems }

// Seed returns the k-means seed.
func (d DistillConfig) Seed() uint64 { return d.seed }

// Restarts returns the number of k-means restarts.
func (d DistillConfig) Restarts() int { return d.restarts }

// MaxTokens returns the generation budget per synthesis prompt.
func (d DistillConfig) MaxTokens() int { return d.maxTokens }

// WithChunkSize returns a new config with the given chunk size.
func (d DistillConfig) WithChunkSize(n int) DistillConfig {
	if n > 0 {
		d.chunkSize = n
	}
	return d
}

// WithMaxClusterItems returns a new config with the given member cap.
func (d DistillConfig) WithMaxClusterItems(n int) DistillConfig {
	if n > 0 {
		d.maxClusterItems = n
	}
	return d
}

// WithSeed returns a new config with the given seed.
func (d DistillConfig) WithSeed(seed uint64) DistillConfig {
	d.seed = seed
	return d
}

// WithRestarts returns a new config with the given restart count.
func (d DistillConfig) WithRestarts(n int) DistillConfig {
	if n > 0 {
		d.restarts = n
	}
	return d
}

// WithMaxTokens returns a new config with the given token budget.
func (d DistillConfig) WithMaxTokens(n int) DistillConfig {
	if n > 0 {
		d.maxTokens = n
	}
	return d
}

// AppConfig holds the main application configuration.
type AppConfig struct {
	dataDir            string
	dbURL              string
	logLevel           string
	logFormat          LogFormat
	modelDir           string
	concernsFile       string
	generationEndpoint Endpoint
	embeddingEndpoint  *Endpoint
	distill            DistillConfig
	dedupThreshold     float64
}

// PrepareDataDir creates the data directory if it does not exist and returns it.
func PrepareDataDir(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("create data directory: %w", err)
	}
	return dataDir, nil
}

// NewAppConfig creates a new AppConfig with defaults.
func NewAppConfig() AppConfig {
	return AppConfig{
		dataDir:            DefaultDataDir,
		dbURL:              "sqlite:///" + filepath.Join(DefaultDataDir, DefaultDBName),
		logLevel:           DefaultLogLevel,
		logFormat:          LogFormatPretty,
		generationEndpoint: NewEndpointWithOptions(WithModel(DefaultGenerationModel)),
		distill:            NewDistillConfig(),
		dedupThreshold:     DefaultDedupThreshold,
	}
}

// DataDir returns the data directory path.
func (c AppConfig) DataDir() string { return c.dataDir }

// DBURL returns the database connection URL.
func (c AppConfig) DBURL() string { return c.dbURL }

// LogLevel returns the log level.
func (c AppConfig) LogLevel() string { return c.logLevel }

// LogFormat returns the log format.
func (c AppConfig) LogFormat() LogFormat { return c.logFormat }

// ModelDir returns the directory holding the local embedding model.
func (c AppConfig) ModelDir() string {
	if c.modelDir != "" {
		return c.modelDir
	}
	return filepath.Join(c.dataDir, "models")
}

// ConcernsFile returns the concern taxonomy path, or empty for the built-in list.
func (c AppConfig) ConcernsFile() string { return c.concernsFile }

// GenerationEndpoint returns the generative-model endpoint config.
func (c AppConfig) GenerationEndpoint() Endpoint { return c.generationEndpoint }

// EmbeddingEndpoint returns the remote embedding endpoint config, or nil when
// the local model is used.
func (c AppConfig) EmbeddingEndpoint() *Endpoint { return c.embeddingEndpoint }

// Distill returns the distillation config.
func (c AppConfig) Distill() DistillConfig { return c.distill }

// DedupThreshold returns the near-duplicate similarity threshold.
func (c AppConfig) DedupThreshold() float64 { return c.dedupThreshold }

// ClusteredGuidelinesPath returns the output path for clustered distillation.
func (c AppConfig) ClusteredGuidelinesPath() string {
	return filepath.Join(c.dataDir, DefaultClusteredGuidelinesOut)
}

// ChunkedGuidelinesPath returns the output path for chunked distillation.
func (c AppConfig) ChunkedGuidelinesPath() string {
	return filepath.Join(c.dataDir, DefaultChunkedGuidelinesOut)
}

// DedupedGuidelinesPath returns the output path for deduplication.
func (c AppConfig) DedupedGuidelinesPath() string {
	return filepath.Join(c.dataDir, DefaultDedupedGuidelinesOut)
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c AppConfig) EnsureDataDir() error {
	return os.MkdirAll(c.dataDir, 0o755)
}

// AppConfigOption is a functional option for AppConfig.
type AppConfigOption func(*AppConfig)

// WithDataDir sets the data directory.
func WithDataDir(dir string) AppConfigOption {
	return func(c *AppConfig) {
		c.dataDir = dir
		// Keep the default database beside the data when it was not overridden.
		if c.dbURL == "" || strings.HasSuffix(c.dbURL, DefaultDBName) {
			c.dbURL = "sqlite:///" + filepath.Join(dir, DefaultDBName)
		}
	}
}

// WithDBURL sets the database URL.
func WithDBURL(url string) AppConfigOption {
	return func(c *AppConfig) { c.dbURL = url }
}

// WithLogLevel sets the log level.
func WithLogLevel(level string) AppConfigOption {
	return func(c *AppConfig) { c.logLevel = level }
}

// WithLogFormat sets the log format.
func WithLogFormat(format LogFormat) AppConfigOption {
	return func(c *AppConfig) { c.logFormat = format }
}

// WithModelDir sets the local embedding model directory.
func WithModelDir(dir string) AppConfigOption {
	return func(c *AppConfig) { c.modelDir = dir }
}

// WithConcernsFile sets the concern taxonomy file.
func WithConcernsFile(path string) AppConfigOption {
	return func(c *AppConfig) { c.concernsFile = path }
}

// WithGenerationEndpoint sets the generative-model endpoint.
func WithGenerationEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.generationEndpoint = e }
}

// WithEmbeddingEndpoint sets a remote embedding endpoint.
func WithEmbeddingEndpoint(e Endpoint) AppConfigOption {
	return func(c *AppConfig) { c.embeddingEndpoint = &e }
}

// WithDistillConfig sets the distillation config.
func WithDistillConfig(d DistillConfig) AppConfigOption {
	return func(c *AppConfig) { c.distill = d }
}

// WithDedupThreshold sets the near-duplicate threshold. Values outside (0, 1)
// are ignored.
func WithDedupThreshold(t float64) AppConfigOption {
	return func(c *AppConfig) {
		if t > 0 && t < 1 {
			c.dedupThreshold = t
		}
	}
}

// NewAppConfigWithOptions creates an AppConfig with functional options.
func NewAppConfigWithOptions(opts ...AppConfigOption) AppConfig {
	c := NewAppConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Apply returns a new AppConfig with the given options applied.
func (c AppConfig) Apply(opts ...AppConfigOption) AppConfig {
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// LogAttrs returns slog attributes for logging the configuration.
// Secrets are never included.
func (c AppConfig) LogAttrs() []slog.Attr {
	gen := c.generationEndpoint
	return []slog.Attr{
		slog.String("data_dir", c.dataDir),
		slog.String("log_level", c.logLevel),
		slog.String("db_url", c.maskedDBURL()),
		slog.String("generation_provider", string(gen.Provider())),
		slog.String("generation_model", gen.Model()),
		slog.Bool("generation_vertex", gen.UsesVertex()),
		slog.String("embedding_model", c.embeddingModel()),
		slog.Int("chunk_size", c.distill.ChunkSize()),
		slog.Int("max_cluster_items", c.distill.MaxClusterItems()),
		slog.Float64("dedup_threshold", c.dedupThreshold),
	}
}

func (c AppConfig) maskedDBURL() string {
	if c.dbURL == "" {
		return "(default)"
	}
	if strings.HasPrefix(c.dbURL, "sqlite:") {
		return c.dbURL
	}
	return "postgres://***@***"
}

func (c AppConfig) embeddingModel() string {
	if c.embeddingEndpoint == nil {
		return "(local)"
	}
	return c.embeddingEndpoint.Model()
}
