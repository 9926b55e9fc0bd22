package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"risk-vetting-engine/logging"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations, then import --seed when given",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.RequireDatabase(); err != nil {
			return err
		}
		logger, err := logging.New(cfg.Debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		_, _, _, closeStore, err := openStore(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		closeStore()
		fmt.Fprintln(cmd.OutOrStdout(), "database is up to date")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
