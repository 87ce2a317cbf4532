// Package main is the entry point for the archdistill CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixml/archdistill/internal/config"
	"github.com/spf13/cobra"
)

// Version information set via ldflags during build.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "archdistill",
		Short: "Distill code review comments into architectural guidelines",
		Long: `archdistill turns pull request review comments into architectural guidelines.

Pipeline:
  ingest <file>   classify, summarize and embed new review records
  embed           embed stored records that have no embedding yet
  distill         cluster stored records and synthesize guidelines
  dedup           remove near-duplicate guidelines

Configuration is loaded in the following order (later sources override earlier):
  1. Default values
  2. .env file (if --env-file specified or .env exists in current directory)
  3. Environment variables
  4. Command line flags

Environment variables:
  DATA_DIR                     Data directory (default: data)
  DB_URL                       Database URL (default: sqlite:///{data_dir}/archdistill.db)
  LOG_LEVEL                    Log level: DEBUG, INFO, WARN, ERROR (default: INFO)
  LOG_FORMAT                   Log format: pretty, json (default: pretty)
  MODEL_DIR                    Local embedding model directory (default: {data_dir}/models)
  CONCERNS_FILE                YAML list of architectural concerns

  GENERATION_ENDPOINT_*        Text generation service
    PROVIDER                   anthropic or openai (default: anthropic)
    BASE_URL, MODEL, API_KEY
    VERTEX_PROJECT_ID          Use Claude through Vertex AI
    VERTEX_REGION              Vertex region (default: global)
    NUM_PARALLEL_TASKS         Concurrent requests (default: 1)
    TIMEOUT, MAX_RETRIES, REQUESTS_PER_SECOND, CACHE_DIR

  EMBEDDING_ENDPOINT_*         OpenAI-compatible embedding service
    (same fields; unset means the local all-mpnet-base-v2 model)

  DISTILL_CHUNK_SIZE, DISTILL_MAX_CLUSTER_ITEMS, DISTILL_SEED,
  DISTILL_RESTARTS, DISTILL_MAX_TOKENS, DEDUP_THRESHOLD`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Path to .env file (default: .env in current directory)")

	cmd.AddCommand(ingestCmd(&envFile))
	cmd.AddCommand(embedCmd(&envFile))
	cmd.AddCommand(distillCmd(&envFile))
	cmd.AddCommand(dedupCmd(&envFile))
	cmd.AddCommand(migrateCmd(&envFile))
	cmd.AddCommand(validateCmd(&envFile))
	cmd.AddCommand(versionCmd())

	return cmd
}

// loadConfig loads configuration from .env file and environment variables.
func loadConfig(envFile string) (config.AppConfig, error) {
	cfg, err := config.LoadConfig(envFile)
	if err != nil {
		return config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
