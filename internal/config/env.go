package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ErrInvalidDedupThreshold indicates a dedup threshold outside (0, 1).
var ErrInvalidDedupThreshold = errors.New("dedup threshold must be between 0 and 1 exclusive")

// EnvConfig holds all environment-based configuration.
// Nested structs use underscore delimiter (e.g., GENERATION_ENDPOINT_MODEL).
type EnvConfig struct {
	// DataDir is the directory for output corpora and the default database.
	// Env: DATA_DIR (default: data)
	DataDir string `envconfig:"DATA_DIR" default:"data"`

	// DBURL is the database connection URL.
	// Env: DB_URL
	// Default: sqlite:///{data_dir}/archdistill.db
	DBURL string `envconfig:"DB_URL"`

	// PGVectorURL is an alias for DB_URL.
	// Env: PGVECTOR_URL
	PGVectorURL string `envconfig:"PGVECTOR_URL"`

	// LogLevel is the log verbosity level.
	// Env: LOG_LEVEL (default: INFO)
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`

	// LogFormat is the log output format (pretty or json).
	// Env: LOG_FORMAT (default: pretty)
	LogFormat string `envconfig:"LOG_FORMAT" default:"pretty"`

	// ModelDir is the local embedding model directory.
	// Env: MODEL_DIR
	ModelDir string `envconfig:"MODEL_DIR"`

	// ConcernsFile is a YAML concern taxonomy.
	// Env: CONCERNS_FILE
	ConcernsFile string `envconfig:"CONCERNS_FILE"`

	// GenerationEndpoint configures the generative model.
	GenerationEndpoint EndpointEnv `envconfig:"GENERATION_ENDPOINT"`

	// EmbeddingEndpoint configures a remote embedding model. Leaving the
	// model empty selects the local model.
	EmbeddingEndpoint EndpointEnv `envconfig:"EMBEDDING_ENDPOINT"`

	// Distill tunes synthesis and clustering.
	Distill DistillEnv `envconfig:"DISTILL"`

	// DedupThreshold is the near-duplicate similarity threshold.
	// Env: DEDUP_THRESHOLD (default: 0.85)
	DedupThreshold float64 `envconfig:"DEDUP_THRESHOLD" default:"0.85"`

	// VertexProjectID is an alias for GENERATION_ENDPOINT_VERTEX_PROJECT_ID.
	// Env: ANTHROPIC_VERTEX_PROJECT_ID
	VertexProjectID string `envconfig:"ANTHROPIC_VERTEX_PROJECT_ID"`

	// VertexRegion is an alias for GENERATION_ENDPOINT_VERTEX_REGION.
	// Env: CLOUD_ML_REGION
	VertexRegion string `envconfig:"CLOUD_ML_REGION"`

	// ClaudeModel is an alias for GENERATION_ENDPOINT_MODEL.
	// Env: CLAUDE_MODEL
	ClaudeModel string `envconfig:"CLAUDE_MODEL"`
}

// EndpointEnv holds environment configuration for an AI endpoint.
type EndpointEnv struct {
	// Provider selects the client (anthropic or openai).
	// Env: *_PROVIDER
	Provider string `envconfig:"PROVIDER"`

	// BaseURL is the base URL for the endpoint.
	// Env: *_BASE_URL
	BaseURL string `envconfig:"BASE_URL"`

	// Model is the model identifier.
	// Env: *_MODEL
	Model string `envconfig:"MODEL"`

	// APIKey is the API key for authentication.
	// Env: *_API_KEY
	APIKey string `envconfig:"API_KEY"`

	// VertexProjectID routes Anthropic requests through Vertex AI.
	// Env: *_VERTEX_PROJECT_ID
	VertexProjectID string `envconfig:"VERTEX_PROJECT_ID"`

	// VertexRegion is the Vertex AI region.
	// Env: *_VERTEX_REGION (default: global)
	VertexRegion string `envconfig:"VERTEX_REGION" default:"global"`

	// NumParallelTasks is the number of parallel tasks.
	// Env: *_NUM_PARALLEL_TASKS (default: 1)
	NumParallelTasks int `envconfig:"NUM_PARALLEL_TASKS" default:"1"`

	// Timeout is the request timeout in seconds.
	// Env: *_TIMEOUT (default: 60)
	Timeout float64 `envconfig:"TIMEOUT" default:"60"`

	// MaxRetries is the maximum number of retries.
	// Env: *_MAX_RETRIES (default: 0)
	MaxRetries int `envconfig:"MAX_RETRIES" default:"0"`

	// InitialDelay is the initial retry delay in seconds.
	// Env: *_INITIAL_DELAY (default: 2.0)
	InitialDelay float64 `envconfig:"INITIAL_DELAY" default:"2.0"`

	// BackoffFactor is the retry backoff multiplier.
	// Env: *_BACKOFF_FACTOR (default: 2.0)
	BackoffFactor float64 `envconfig:"BACKOFF_FACTOR" default:"2.0"`

	// RequestsPerSecond caps the request rate. Zero means unlimited.
	// Env: *_REQUESTS_PER_SECOND (default: 0)
	RequestsPerSecond float64 `envconfig:"REQUESTS_PER_SECOND" default:"0"`

	// MaxBatchChars is the maximum total characters per embedding batch.
	// Env: *_MAX_BATCH_CHARS (default: 16000)
	MaxBatchChars int `envconfig:"MAX_BATCH_CHARS" default:"16000"`

	// CacheDir replays identical requests from disk when set.
	// Env: *_CACHE_DIR
	CacheDir string `envconfig:"CACHE_DIR"`
}

// DistillEnv holds environment configuration for distillation.
type DistillEnv struct {
	// ChunkSize is the item count per prompt in chunked mode.
	// Env: DISTILL_CHUNK_SIZE (default: 5)
	ChunkSize int `envconfig:"CHUNK_SIZE" default:"5"`

	// MaxClusterItems caps the members sent per cluster prompt.
	// Env: DISTILL_MAX_CLUSTER_ITEMS (default: 40)
	MaxClusterItems int `envconfig:"MAX_CLUSTER_ITEMS" default:"40"`

	// Seed seeds k-means.
	// Env: DISTILL_SEED (default: 42)
	Seed uint64 `envconfig:"SEED" default:"42"`

	// Restarts is the number of k-means restarts.
	// Env: DISTILL_RESTARTS (default: 10)
	Restarts int `envconfig:"RESTARTS" default:"10"`

	// MaxTokens is the generation budget per synthesis prompt.
	// Env: DISTILL_MAX_TOKENS (default: 4000)
	MaxTokens int `envconfig:"MAX_TOKENS" default:"4000"`
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// LoadFromEnvWithPrefix loads configuration with a custom prefix.
// For example, prefix "ARCHDISTILL" would require ARCHDISTILL_DATA_DIR instead of DATA_DIR.
func LoadFromEnvWithPrefix(prefix string) (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}

// Validate rejects values that have no sensible substitute.
func (e EnvConfig) Validate() error {
	if e.DedupThreshold <= 0 || e.DedupThreshold >= 1 {
		return fmt.Errorf("%w: DEDUP_THRESHOLD=%v", ErrInvalidDedupThreshold, e.DedupThreshold)
	}
	return nil
}

// ToAppConfig converts EnvConfig to AppConfig.
func (e EnvConfig) ToAppConfig() AppConfig {
	cfg := NewAppConfig()

	if e.DataDir != "" {
		cfg = applyOption(cfg, WithDataDir(e.DataDir))
	}
	if e.DBURL != "" {
		cfg = applyOption(cfg, WithDBURL(e.DBURL))
	}
	if e.LogLevel != "" {
		cfg = applyOption(cfg, WithLogLevel(e.LogLevel))
	}
	if e.LogFormat != "" {
		cfg = applyOption(cfg, WithLogFormat(parseLogFormat(e.LogFormat)))
	}
	if e.ModelDir != "" {
		cfg = applyOption(cfg, WithModelDir(e.ModelDir))
	}
	if e.ConcernsFile != "" {
		cfg = applyOption(cfg, WithConcernsFile(e.ConcernsFile))
	}

	// Generation always has an endpoint; an empty model keeps the default.
	gen := e.GenerationEndpoint
	if gen.Model == "" {
		gen.Model = DefaultGenerationModel
	}
	cfg = applyOption(cfg, WithGenerationEndpoint(gen.ToEndpoint(DefaultGenerationProvider)))

	// Embedding endpoint
	if e.EmbeddingEndpoint.IsConfigured() {
		cfg = applyOption(cfg, WithEmbeddingEndpoint(e.EmbeddingEndpoint.ToEndpoint(ProviderOpenAI)))
	}

	cfg = applyOption(cfg, WithDistillConfig(e.Distill.ToDistillConfig()))
	cfg = applyOption(cfg, WithDedupThreshold(e.DedupThreshold))

	return cfg
}

// applyOption applies an option to the config.
func applyOption(cfg AppConfig, opt AppConfigOption) AppConfig {
	opt(&cfg)
	return cfg
}

// IsConfigured returns true if the endpoint has a model configured.
func (e EndpointEnv) IsConfigured() bool {
	return e.Model != ""
}

// ToEndpoint converts EndpointEnv to Endpoint. fallback is used when no
// provider is named.
func (e EndpointEnv) ToEndpoint(fallback Provider) Endpoint {
	opts := []EndpointOption{
		WithProvider(parseProvider(e.Provider, fallback)),
		WithModel(e.Model),
		WithNumParallelTasks(e.NumParallelTasks),
		WithTimeout(time.Duration(e.Timeout * float64(time.Second))),
		WithMaxRetries(e.MaxRetries),
		WithInitialDelay(time.Duration(e.InitialDelay * float64(time.Second))),
		WithBackoffFactor(e.BackoffFactor),
		WithRequestsPerSecond(e.RequestsPerSecond),
		WithMaxBatchChars(e.MaxBatchChars),
	}

	if e.BaseURL != "" {
		opts = append(opts, WithBaseURL(e.BaseURL))
	}
	if e.APIKey != "" {
		opts = append(opts, WithAPIKey(e.APIKey))
	}
	if e.CacheDir != "" {
		opts = append(opts, WithCacheDir(e.CacheDir))
	}
	if e.VertexProjectID != "" {
		opts = append(opts, WithVertex(e.VertexProjectID, e.VertexRegion))
	}

	return NewEndpointWithOptions(opts...)
}

// ToDistillConfig converts DistillEnv to DistillConfig.
func (d DistillEnv) ToDistillConfig() DistillConfig {
	return NewDistillConfig().
		WithChunkSize(d.ChunkSize).
		WithMaxClusterItems(d.MaxClusterItems).
		WithSeed(d.Seed).
		WithRestarts(d.Restarts).
		WithMaxTokens(d.MaxTokens)
}

// parseLogFormat parses a log format string.
func parseLogFormat(s string) LogFormat {
	switch strings.ToLower(s) {
	case "json":
		return LogFormatJSON
	default:
		return LogFormatPretty
	}
}

// parseProvider parses a provider name.
func parseProvider(s string, fallback Provider) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "anthropic", "claude":
		return ProviderAnthropic
	case "openai":
		return ProviderOpenAI
	default:
		return fallback
	}
}
