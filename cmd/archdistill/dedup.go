package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/helixml/archdistill/application/service"
	"github.com/helixml/archdistill/domain/guideline"
	"github.com/helixml/archdistill/infrastructure/corpus"
	"github.com/spf13/cobra"
)

// previewLen is how much of a guideline a dry run shows per removal.
const previewLen = 80

func dedupCmd(envFile *string) *cobra.Command {
	var (
		input     string
		output    string
		threshold float64
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "dedup",
		Short: "Remove near-duplicate guidelines from a corpus file",
		Long: `Compare every pair of guidelines and drop exact and near-duplicates. Of a
duplicate pair the one with the longer rationale is kept. The database is not
touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "dedup")
			if err != nil {
				return err
			}

			if input == "" {
				input = r.cfg.ChunkedGuidelinesPath()
			}
			if output == "" {
				output = r.cfg.DedupedGuidelinesPath()
			}
			if cmd.Flags().Changed("threshold") {
				if err := guideline.CheckThreshold(threshold); err != nil {
					return fmt.Errorf("--threshold: %w", err)
				}
			} else {
				threshold = r.cfg.DedupThreshold()
			}

			svc := service.NewDedup(
				corpus.NewFile(),
				guideline.NewDeduplicator(guideline.WithThreshold(threshold), guideline.WithLogger(r.logger)),
				r.logger,
			)
			report, err := svc.Run(input, output, dryRun)
			if err != nil {
				return fmt.Errorf("dedup: %w", err)
			}

			printDedup(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().StringVar(&input, "input", "", "Input guidelines file (default: {data_dir}/guidelines.json)")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: {data_dir}/guidelines_deduped.json)")
	cmd.Flags().Float64Var(&threshold, "threshold", guideline.DefaultThreshold, "Similarity threshold for duplicates, between 0 and 1")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be removed without writing")

	return cmd
}

func printDedup(w io.Writer, report service.DedupReport) {
	stats := report.Stats
	switch {
	case report.DryRun:
		for _, rm := range report.Removals {
			g := report.Original[rm.Index]
			fmt.Fprintf(w, "  #%d: %s - %s...\n", rm.Index, g.Concern, truncate(g.Guideline, previewLen))
		}
		color.New(color.FgYellow).Fprintf(w, "[DRY RUN] Would reduce: %d → %d guidelines\n", stats.Original, stats.Kept())
	case stats.Removed > 0:
		color.New(color.FgGreen).Fprintf(w, "✓ Deduplication complete: %d → %d guidelines\n", stats.Original, stats.Kept())
	default:
		color.New(color.FgGreen).Fprintln(w, "✓ No duplicates found")
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
