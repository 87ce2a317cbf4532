package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/helixml/archdistill"
	"github.com/helixml/archdistill/application/service"
	"github.com/spf13/cobra"
)

func ingestCmd(envFile *string) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "ingest <file>",
		Short: "Enrich and store new review records from a JSONL file",
		Long: `Read review records from a JSONL file, skip the ones already stored,
classify each new comment against the concern taxonomy, summarize it, embed
the summary and append it to arch_items. Records are committed in batches,
so an interrupted run keeps the batches it finished.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "ingest")
			if err != nil {
				return err
			}
			client, err := r.client(archdistill.WithIngestBatchSize(batchSize))
			if err != nil {
				return err
			}
			defer r.closeClient(client)

			out := cmd.OutOrStdout()
			bar := newProgress(r, cmd.ErrOrStderr(), "enrich")
			report, err := client.IngestFile(r.ctx, args[0], service.IngestHooks{
				Found: func(n int) {
					if n > 0 {
						fmt.Fprintf(out, "Found %d new records.\n", n)
					}
				},
				Enriched: bar.Update,
			})
			bar.Finish()
			if err != nil {
				return fmt.Errorf("ingest %s: %w", args[0], err)
			}

			if report.Status == service.IngestStatusNothingNew {
				fmt.Fprintln(out, "Found 0 new records\nNothing new.")
				return nil
			}
			color.New(color.FgGreen).Fprintf(out, "Done. Added %d new records.\n", report.Added)
			return nil
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Records enriched and committed together (default: 50)")

	return cmd
}
