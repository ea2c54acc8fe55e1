package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/garnizeh/fieldops/internal/auth"
	"github.com/garnizeh/fieldops/internal/models"
)

func newUserCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}
	cmd.AddCommand(newUserCreateCmd(o), newUserSetActiveCmd(o))
	return cmd
}

func newUserCreateCmd(o *options) *cobra.Command {
	var in auth.NewUser
	var role string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an active user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, repo, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			in.Role = models.Role(strings.ToUpper(role))
			u, err := auth.New(repo, o.cfg.JWTSecret, 0, 0, o.logger).CreateUser(ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s %s (id %d).\n", u.Role, u.Username, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Username, "username", "", "Username")
	cmd.Flags().StringVar(&in.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&in.Password, "password", "", "Password (at least 8 characters)")
	cmd.Flags().StringVar(&role, "role", string(models.RoleTechnician), "ADMIN, TECHNICIAN or SALES_AGENT")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newUserSetActiveCmd(o *options) *cobra.Command {
	var active bool

	cmd := &cobra.Command{
		Use:   "set-active <username>",
		Short: "Activate or deactivate a user",
		Long:  "Deactivated users cannot log in and their existing tokens stop working.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			d, repo, err := o.open(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			u, err := repo.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %q not found", args[0])
			}
			if err := repo.SetUserActive(ctx, u.ID, active); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "User %s active=%t.\n", u.Username, active)
			return nil
		},
	}

	cmd.Flags().BoolVar(&active, "active", true, "Whether the account is active")
	return cmd
}
