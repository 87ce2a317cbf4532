package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func embedCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "embed",
		Short: "Embed stored records that have no embedding",
		Long: `Embed every arch_items row whose embedding is null. The embedded text joins
the repository, PR, file, comment, diff, summary and evidence of the row.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "embed")
			if err != nil {
				return err
			}
			client, err := r.client()
			if err != nil {
				return err
			}
			defer r.closeClient(client)

			out := cmd.OutOrStdout()
			bar := newProgress(r, cmd.ErrOrStderr(), "embed")
			report, err := client.Embed(r.ctx, bar.Update)
			bar.Finish()
			if err != nil {
				return fmt.Errorf("embed: %w", err)
			}

			if report.Pending == 0 {
				fmt.Fprintln(out, "All records already have embeddings.")
				return nil
			}
			color.New(color.FgGreen).Fprintf(out, "Done. Embedded %d of %d records.\n", report.Updated, report.Pending)
			return nil
		},
	}
}
