// Package cli holds the service command line: the HTTP server and
// operational maintenance commands.
package cli

import (
	"fmt"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-identity/internal/config"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/database"
	"github.com/ovaphlow/pitchfork/service-identity/pkg/utilities"
)

var (
	cfg    config.Config
	logger *zap.SugaredLogger
)

var rootCmd = &cobra.Command{
	Use:           "service-identity",
	Short:         "Identity service: accounts, profiles and sessions",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		lg, err := utilities.Init(utilities.ConfigFromEnv())
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = lg.Sugar()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, bootstrapAdminCmd, sweepSessionsCmd, banUserCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExecuteArgs runs the command line with explicit arguments.
func ExecuteArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func connect() (*sqlx.DB, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return db, nil
}
