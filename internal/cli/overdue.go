package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/garnizeh/fieldops/internal/jobs"
	"github.com/garnizeh/fieldops/internal/overdue"
)

func newFlagOverdueCmd(o *options) *cobra.Command {
	var (
		at      string
		enqueue bool
	)

	cmd := &cobra.Command{
		Use:   "flag-overdue",
		Short: "Flag unfinished jobs whose scheduled date has passed",
		Long: "Runs the overdue sweep once against the database. With --enqueue the sweep is\n" +
			"queued for a running server's workers instead.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, repo, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			if enqueue {
				id, err := jobs.Enqueue(ctx, repo, overdue.JobType, struct{}{}, 10, 3)
				if err != nil {
					return fmt.Errorf("enqueue: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued %s as job %d.\n", overdue.JobType, id)
				return nil
			}

			f := overdue.NewFlagger(repo, o.logger)
			if at != "" {
				ts, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				f.SetClock(func() time.Time { return ts })
			}

			n, err := f.Run(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Flagged %d overdue jobs.\n", n)
			return nil
		},
	}

	cmd.Flags().StringVar(&at, "at", "", "Sweep as of this RFC 3339 time instead of now")
	cmd.Flags().BoolVar(&enqueue, "enqueue", false, "Queue the sweep for the server's workers")
	return cmd
}
