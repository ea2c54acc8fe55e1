// Package cli implements fieldctl, the operator command line for a fieldops
// database.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/garnizeh/fieldops/internal/config"
	"github.com/garnizeh/fieldops/internal/db"
	"github.com/garnizeh/fieldops/internal/repository/sqlite"
)

type options struct {
	configPath string
	dbPath     string
	verbose    bool

	cfg    *config.Config
	logger *slog.Logger
}

// NewRootCmd builds the fieldctl command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:           "fieldctl",
		Short:         "Operate a fieldops database: migrations, seed data, users, backups.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(o.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if o.dbPath != "" {
				cfg.DatabasePath = o.dbPath
			}
			if cfg.DatabasePath == "" {
				return fmt.Errorf("database path is empty")
			}
			o.cfg = cfg

			level := slog.LevelWarn
			if o.verbose {
				level = slog.LevelDebug
			}
			o.logger = slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&o.configPath, "config", "", "Path to config YAML file")
	root.PersistentFlags().StringVar(&o.dbPath, "db", "", "Path to SQLite DB (overrides database_path)")
	root.PersistentFlags().BoolVarP(&o.verbose, "verbose", "v", false, "Log debug output to stderr")

	root.AddCommand(
		newMigrateCmd(o),
		newSeedCmd(o),
		newFlagOverdueCmd(o),
		newUserCmd(o),
		newBackupCmd(o),
		newRestoreCmd(o),
	)

	return root
}

// Execute runs fieldctl with args and writes errors to stderr.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return err
	}
	return nil
}

// open returns the configured database and a repository over it.
func (o *options) open(ctx context.Context) (*db.DB, *sqlite.SQLiteRepo, error) {
	d, err := db.New(ctx, o.cfg.DatabasePath, o.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", o.cfg.DatabasePath, err)
	}
	return d, sqlite.New(d, o.logger), nil
}
