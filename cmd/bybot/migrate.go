package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the procesos tables for the configured driver",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		store, err := a.openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()

		if err := store.Migrate(cmd.Context()); err != nil {
			return err
		}
		a.logger.Info("migrations applied", "driver", a.cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
