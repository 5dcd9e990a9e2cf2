package cmd

import (
	"fmt"

	"github.com/redhat-developer/rhdh-plugins-sub008/internal/ledger"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending ledger migrations",
	Long:  `Open the configured ledger database and apply every pending schema migration, then exit.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		l, err := ledger.Open(cmd.Context(), ledger.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN})
		if err != nil {
			return err
		}

		defer func() { _ = l.Close() }()

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Ledger migrated (%s)\n", cfg.Database.Driver)

		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)

	migrateCmd.Flags().String("driver", "sqlite", "Database driver: sqlite or postgres")
	migrateCmd.Flags().String("dsn", "", "Database connection string")

	_ = v.BindPFlag("database.driver", migrateCmd.Flags().Lookup("driver"))
	_ = v.BindPFlag("database.dsn", migrateCmd.Flags().Lookup("dsn"))
}
