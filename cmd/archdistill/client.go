package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/helixml/archdistill"
	"github.com/helixml/archdistill/internal/config"
	"github.com/helixml/archdistill/internal/log"
	"github.com/spf13/cobra"
)

// run holds what every command needs: a context carrying the correlation
// ID, the loaded configuration and a logger bound to both.
type run struct {
	ctx    context.Context
	cfg    config.AppConfig
	logger *slog.Logger
}

// startRun loads configuration and sets up logging for one command
// invocation.
func startRun(cmd *cobra.Command, envFile, name string) (run, error) {
	cfg, err := loadConfig(envFile)
	if err != nil {
		return run{}, err
	}

	ctx := log.WithCommand(cmd.Context(), name)
	ctx = log.WithCorrelationID(ctx, uuid.NewString())

	logger := log.Configure(cfg).WithContext(ctx).Slog()
	logger.Debug("configuration loaded", attrsToArgs(cfg.LogAttrs())...)

	return run{ctx: ctx, cfg: cfg, logger: logger}, nil
}

// client opens an archdistill.Client for the run's configuration.
func (r run) client(opts ...archdistill.Option) (*archdistill.Client, error) {
	base := []archdistill.Option{
		archdistill.WithConfig(r.cfg),
		archdistill.WithLogger(r.logger),
	}
	client, err := archdistill.New(r.ctx, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}
	return client, nil
}

// closeClient closes c and logs a failure instead of masking the command's
// own error.
func (r run) closeClient(c *archdistill.Client) {
	if err := c.Close(); err != nil {
		r.logger.Error("failed to close client", slog.Any("error", err))
	}
}

func attrsToArgs(attrs []slog.Attr) []any {
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return args
}
