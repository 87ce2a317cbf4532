package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/helixml/archdistill/application/service"
	"github.com/spf13/cobra"
)

func distillCmd(envFile *string) *cobra.Command {
	var (
		chunked bool
		output  string
	)

	cmd := &cobra.Command{
		Use:   "distill",
		Short: "Synthesize architectural guidelines from stored records",
		Long: `Group stored records and ask the generation model for guidelines per group.

By default records are clustered with k-means over their embeddings and every
guideline is tagged with the name of its cluster. With --chunked, records are
taken in id order in fixed-size chunks and embeddings are not needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "distill")
			if err != nil {
				return err
			}
			client, err := r.client()
			if err != nil {
				return err
			}
			defer r.closeClient(client)

			var report service.DistillReport
			if chunked {
				report, err = client.DistillChunked(r.ctx, output)
			} else {
				report, err = client.DistillClustered(r.ctx, output)
			}
			if err != nil {
				return fmt.Errorf("distill: %w", err)
			}

			printDistill(cmd.OutOrStdout(), report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&chunked, "chunked", false, "Synthesize from fixed-size chunks instead of clusters")
	cmd.Flags().StringVar(&output, "output", "", "Output file (default: {data_dir}/guidelines_clustered.json, or guidelines.json with --chunked)")

	return cmd
}

func printDistill(w io.Writer, report service.DistillReport) {
	warn := color.New(color.FgYellow)
	switch report.Status {
	case service.DistillStatusNoEmbeddings:
		warn.Fprintln(w, "No embeddings found in arch_items. Run ingest or embed first.")
	case service.DistillStatusNoUsableEmbeddings:
		warn.Fprintf(w, "No usable embeddings: %d rows could not be parsed.\n", report.Unparseable)
	case service.DistillStatusNotEnoughData:
		warn.Fprintf(w, "Not enough data to cluster: %d usable items.\n", report.Dimensions.Kept())
	case service.DistillStatusNoItems:
		warn.Fprintln(w, "No items found in arch_items.")
	default:
		if report.Batch.Failed > 0 {
			warn.Fprintf(w, "%d of %d groups produced unusable output; see the log.\n", report.Batch.Failed, report.Batch.Units)
		}
		color.New(color.FgGreen).Fprintf(w, "Saved %d guidelines to %s\n", len(report.Batch.Guidelines), report.Output)
	}
}
