package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/helixml/archdistill"
	"github.com/helixml/archdistill/infrastructure/persistence"
	"github.com/spf13/cobra"
)

// errSchemaMismatch makes validate exit non-zero when columns differ.
var errSchemaMismatch = errors.New("schema mismatches found")

func migrateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create arch_items or convert it to the expected column types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "migrate")
			if err != nil {
				return err
			}
			client, err := r.client(archdistill.WithSkipMigrate())
			if err != nil {
				return err
			}
			defer r.closeClient(client)

			if err := client.Migrate(r.ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "✅ Migration complete")
			return nil
		},
	}
}

func validateCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Compare arch_items columns with the expected types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := startRun(cmd, *envFile, "validate")
			if err != nil {
				return err
			}
			client, err := r.client(archdistill.WithSkipMigrate())
			if err != nil {
				return err
			}
			defer r.closeClient(client)

			out := cmd.OutOrStdout()
			mismatches, err := client.ValidateSchema(r.ctx)
			if errors.Is(err, persistence.ErrTableMissing) {
				color.New(color.FgRed).Fprintln(out, "❌ Table arch_items does not exist")
				return err
			}
			if err != nil {
				return fmt.Errorf("validate: %w", err)
			}

			if len(mismatches) == 0 {
				color.New(color.FgGreen).Fprintln(out, "✅ Schema is valid.")
				return nil
			}

			color.New(color.FgRed).Fprintln(out, "❌ SCHEMA MISMATCHES FOUND:")
			fmt.Fprintln(out)
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "Column\tExpected Type\tActual Type")
			fmt.Fprintln(tw, "------\t-------------\t-----------")
			for _, m := range mismatches {
				actual := m.Actual
				if m.Missing() {
					actual = "(missing)"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Column, m.Expected, actual)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run: archdistill migrate to fix.")
			return errSchemaMismatch
		},
	}
}
