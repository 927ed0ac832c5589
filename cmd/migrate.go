package main

import (
	"github.com/spf13/cobra"

	"github.com/madhvv-7/E-waste-madhav/internal/repositories"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, dialect, err := openDB(cmd.Context(), cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := repositories.Migrate(cmd.Context(), db, dialect); err != nil {
			return err
		}
		infoLog.Printf("Schema applied (%s)", dialect)
		return nil
	},
}
