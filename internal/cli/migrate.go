package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	dbfs "github.com/garnizeh/fieldops/db"
	"github.com/garnizeh/fieldops/internal/db"
)

func newMigrateCmd(o *options) *cobra.Command {
	var noCatalog bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and load the equipment catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, _, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := db.Migrate(ctx, d, dbfs.Migrations); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			if noCatalog {
				fmt.Fprintln(cmd.OutOrStdout(), "Database migrated.")
				return nil
			}

			n, err := db.Seed(ctx, d, dbfs.SeedFiles)
			if err != nil {
				return fmt.Errorf("seed catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Database migrated, %d catalog equipment added.\n", n)
			return nil
		},
	}

	cmd.Flags().BoolVar(&noCatalog, "no-catalog", false, "Skip loading the equipment catalog")
	return cmd
}
