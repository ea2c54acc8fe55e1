package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newBackupCmd(o *options) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a consistent copy of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if out == "" {
				out = o.cfg.DatabasePath + ".bak"
			}
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("backup %s already exists", out)
			}

			ctx := cmd.Context()
			d, _, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			// VACUUM INTO is consistent while a server holds the file open
			if _, err := d.Exec(ctx, `VACUUM INTO ?`, out); err != nil {
				return fmt.Errorf("backup: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database backup written to %s.\n", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Backup file (default <database_path>.bak)")
	return cmd
}

func newRestoreCmd(o *options) *cobra.Command {
	var from string

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Replace the database with a backup; stop the server first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				from = o.cfg.DatabasePath + ".bak"
			}
			if err := copyFile(from, o.cfg.DatabasePath); err != nil {
				return fmt.Errorf("restore: %w", err)
			}

			// stale journal files would be replayed over the restored copy
			for _, suffix := range []string{"-wal", "-shm", "-journal"} {
				if err := os.Remove(o.cfg.DatabasePath + suffix); err != nil && !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("remove %s: %w", suffix, err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Database restored from %s.\n", from)
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "Backup file (default <database_path>.bak)")
	return cmd
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}

	return dstFile.Close()
}
