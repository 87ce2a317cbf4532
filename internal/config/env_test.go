package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "", cfg.DBURL)
	assert.Equal(t, "INFO", cfg.LogLevel)
	assert.Equal(t, "pretty", cfg.LogFormat)
	assert.Equal(t, 0.85, cfg.DedupThreshold)

	assert.Equal(t, "", cfg.GenerationEndpoint.Model)
	assert.Equal(t, "global", cfg.GenerationEndpoint.VertexRegion)
	assert.Equal(t, 0, cfg.GenerationEndpoint.MaxRetries)
	assert.Equal(t, 5, cfg.Distill.ChunkSize)
	assert.Equal(t, 40, cfg.Distill.MaxClusterItems)
	assert.Equal(t, uint64(42), cfg.Distill.Seed)
}

func TestEnvDefaults_MatchConfigDefaults(t *testing.T) {
	// Struct tag defaults must be literals, so keep them in step with the constants.
	clearEnvVars(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultDedupThreshold, cfg.DedupThreshold)

	ep := cfg.GenerationEndpoint
	assert.Equal(t, DefaultVertexRegion, ep.VertexRegion)
	assert.Equal(t, DefaultEndpointParallelTasks, ep.NumParallelTasks)
	assert.Equal(t, DefaultEndpointTimeout.Seconds(), ep.Timeout)
	assert.Equal(t, DefaultEndpointMaxRetries, ep.MaxRetries)
	assert.Equal(t, DefaultEndpointInitialDelay.Seconds(), ep.InitialDelay)
	assert.Equal(t, DefaultEndpointBackoffFactor, ep.BackoffFactor)
	assert.Equal(t, DefaultEndpointMaxBatchChars, ep.MaxBatchChars)

	assert.Equal(t, DefaultChunkSize, cfg.Distill.ChunkSize)
	assert.Equal(t, DefaultMaxClusterItems, cfg.Distill.MaxClusterItems)
	assert.Equal(t, uint64(DefaultSeed), cfg.Distill.Seed)
	assert.Equal(t, DefaultRestarts, cfg.Distill.Restarts)
	assert.Equal(t, DefaultDistillMaxTokens, cfg.Distill.MaxTokens)
}

func TestLoadFromEnv_OverrideValues(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DATA_DIR", "/tmp/arch")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("GENERATION_ENDPOINT_PROVIDER", "openai")
	t.Setenv("GENERATION_ENDPOINT_MODEL", "gpt-4o")
	t.Setenv("GENERATION_ENDPOINT_BASE_URL", "http://localhost:11434/v1")
	t.Setenv("GENERATION_ENDPOINT_NUM_PARALLEL_TASKS", "4")
	t.Setenv("GENERATION_ENDPOINT_REQUESTS_PER_SECOND", "2.5")
	t.Setenv("EMBEDDING_ENDPOINT_MODEL", "text-embedding-3-small")
	t.Setenv("DISTILL_CHUNK_SIZE", "8")
	t.Setenv("DEDUP_THRESHOLD", "0.9")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.Normalize().ToAppConfig()

	assert.Equal(t, "/tmp/arch", cfg.DataDir())
	assert.Equal(t, "sqlite:///"+filepath.Join("/tmp/arch", DefaultDBName), cfg.DBURL())
	assert.Equal(t, LogFormatJSON, cfg.LogFormat())

	gen := cfg.GenerationEndpoint()
	assert.Equal(t, ProviderOpenAI, gen.Provider())
	assert.Equal(t, "gpt-4o", gen.Model())
	assert.Equal(t, "http://localhost:11434/v1", gen.BaseURL())
	assert.Equal(t, 4, gen.NumParallelTasks())
	assert.Equal(t, 2.5, gen.RequestsPerSecond())
	assert.False(t, gen.UsesVertex())

	require.NotNil(t, cfg.EmbeddingEndpoint())
	assert.Equal(t, ProviderOpenAI, cfg.EmbeddingEndpoint().Provider())
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingEndpoint().Model())

	assert.Equal(t, 8, cfg.Distill().ChunkSize())
	assert.Equal(t, 0.9, cfg.DedupThreshold())
}

func TestLoadConfig_RejectsDedupThresholdOutOfRange(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")
	for _, v := range []string{"0", "1", "1.5", "-0.2"} {
		t.Run(v, func(t *testing.T) {
			clearEnvVars(t)
			t.Setenv("DEDUP_THRESHOLD", v)

			_, err := LoadConfig(missing)
			assert.ErrorIs(t, err, ErrInvalidDedupThreshold)
		})
	}
}

func TestLoadConfig_AcceptsDedupThresholdInRange(t *testing.T) {
	clearEnvVars(t)
	t.Setenv("DEDUP_THRESHOLD", "0.7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.DedupThreshold())
}

func TestNormalize_LegacyAliases(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("PGVECTOR_URL", "postgresql+psycopg2://u:p@db:5432/arch")
	t.Setenv("ANTHROPIC_VERTEX_PROJECT_ID", "my-project")
	t.Setenv("CLOUD_ML_REGION", "us-east5")
	t.Setenv("CLAUDE_MODEL", "claude-opus")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.Normalize().ToAppConfig()

	assert.Equal(t, "postgres://u:p@db:5432/arch", cfg.DBURL())

	gen := cfg.GenerationEndpoint()
	assert.Equal(t, ProviderAnthropic, gen.Provider())
	assert.Equal(t, "claude-opus", gen.Model())
	assert.True(t, gen.UsesVertex())
	assert.Equal(t, "my-project", gen.VertexProjectID())
	assert.Equal(t, "us-east5", gen.VertexRegion())
}

func TestNormalize_CanonicalWins(t *testing.T) {
	clearEnvVars(t)

	t.Setenv("DB_URL", "sqlite:///tmp/x.db")
	t.Setenv("PGVECTOR_URL", "postgres://ignored")
	t.Setenv("GENERATION_ENDPOINT_MODEL", "canonical")
	t.Setenv("CLAUDE_MODEL", "alias")

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.Normalize().ToAppConfig()

	assert.Equal(t, "sqlite:///tmp/x.db", cfg.DBURL())
	assert.Equal(t, "canonical", cfg.GenerationEndpoint().Model())
}

func TestToAppConfig_NoEmbeddingEndpointMeansLocal(t *testing.T) {
	clearEnvVars(t)

	env, err := LoadFromEnv()
	require.NoError(t, err)
	cfg := env.ToAppConfig()

	assert.Nil(t, cfg.EmbeddingEndpoint())
	assert.Equal(t, DefaultGenerationModel, cfg.GenerationEndpoint().Model())
	assert.Equal(t, DefaultEndpointTimeout, cfg.GenerationEndpoint().Timeout())
}

func TestLoadConfig_DotEnv(t *testing.T) {
	clearEnvVars(t)

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("DISTILL_MAX_CLUSTER_ITEMS=12\nLOG_LEVEL=DEBUG\n"), 0o644))
	t.Cleanup(func() {
		_ = os.Unsetenv("DISTILL_MAX_CLUSTER_ITEMS")
		_ = os.Unsetenv("LOG_LEVEL")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Distill().MaxClusterItems())
	assert.Equal(t, "DEBUG", cfg.LogLevel())
}

func TestLoadConfig_MissingDotEnv(t *testing.T) {
	clearEnvVars(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel())
	assert.Equal(t, 60*time.Second, cfg.GenerationEndpoint().Timeout())
}

func clearEnvVars(t *testing.T) {
	t.Helper()

	vars := []string{
		"DATA_DIR",
		"DB_URL",
		"PGVECTOR_URL",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"MODEL_DIR",
		"CONCERNS_FILE",
		"DEDUP_THRESHOLD",
		"ANTHROPIC_VERTEX_PROJECT_ID",
		"CLOUD_ML_REGION",
		"CLAUDE_MODEL",
		"DISTILL_CHUNK_SIZE",
		"DISTILL_MAX_CLUSTER_ITEMS",
		"DISTILL_SEED",
		"DISTILL_RESTARTS",
		"DISTILL_MAX_TOKENS",
	}
	for _, prefix := range []string{"GENERATION_ENDPOINT_", "EMBEDDING_ENDPOINT_"} {
		for _, f := range []string{
			"PROVIDER", "BASE_URL", "MODEL", "API_KEY", "VERTEX_PROJECT_ID",
			"VERTEX_REGION", "NUM_PARALLEL_TASKS", "TIMEOUT", "MAX_RETRIES",
			"INITIAL_DELAY", "BACKOFF_FACTOR", "REQUESTS_PER_SECOND", "MAX_BATCH_CHARS",
		} {
			vars = append(vars, prefix+f)
		}
	}

	for _, v := range vars {
		// Setenv registers the restore; Unsetenv leaves the variable absent.
		t.Setenv(v, "")
		_ = os.Unsetenv(v)
	}
}
