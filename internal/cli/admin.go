package cli

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-identity/internal/acs"
	"github.com/ovaphlow/pitchfork/service-identity/internal/app"
	profileentity "github.com/ovaphlow/pitchfork/service-identity/internal/profile/entity"
	"github.com/ovaphlow/pitchfork/service-identity/internal/schema"
	userentity "github.com/ovaphlow/pitchfork/service-identity/internal/user/entity"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()
		if err := schema.Migrate(cmd.Context(), db); err != nil {
			return err
		}
		logger.Info("schema is up to date")
		return nil
	},
}

var adminEmail, adminPassword string

var bootstrapAdminCmd = &cobra.Command{
	Use:   "bootstrap-admin",
	Short: "Create an administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()
		a := app.New(cfg, db, logger, app.Options{})
		p, err := a.Profiles.Create(cmd.Context(), profileentity.NewProfile{
			Email:          adminEmail,
			Password:       adminPassword,
			Role:           userentity.RoleAdministrator,
			EmailConfirmed: true,
		}, acs.GrandAccess(), false)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "administrator %s created (uid %s)\n", p.Username, p.UID)
		return nil
	},
}

var sweepSessionsCmd = &cobra.Command{
	Use:   "sweep-sessions",
	Short: "Delete sessions older than the refresh token lifetime",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()
		n, err := app.New(cfg, db, logger, app.Options{}).Sweeper.SweepOnce(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d sessions deleted\n", n)
		return nil
	},
}

var banUserCmd = &cobra.Command{
	Use:   "ban-user <username>",
	Short: "Ban an account so it can no longer log in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := connect()
		if err != nil {
			return err
		}
		defer db.Close()
		a := app.New(cfg, db, logger, app.Options{})
		if err := a.Users.Ban(cmd.Context(), args[0]); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("user %q not found", args[0])
			}
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "user %s banned\n", args[0])
		return nil
	},
}

func init() {
	bootstrapAdminCmd.Flags().StringVar(&adminEmail, "email", "", "administrator email, also the username")
	bootstrapAdminCmd.Flags().StringVar(&adminPassword, "password", "", "administrator password")
	_ = bootstrapAdminCmd.MarkFlagRequired("email")
	_ = bootstrapAdminCmd.MarkFlagRequired("password")
}
