package main

import (
	"github.com/spf13/cobra"

	"github.com/mattermost/awsprov/internal/store"
)

func init() {
	schemaCmd.AddCommand(schemaMigrateCmd)
	schemaCmd.PersistentFlags().String(databaseFlag, "postgres://localhost:5432/awsprov?sslmode=disable", "The database backing the awsprov server.")
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Manipulate the schema used by the awsprov server.",
}

func sqlStore(dsn string) (*store.SQLStore, error) {
	sqlStore, err := store.New(dsn, logger)
	if err != nil {
		return nil, err
	}

	return sqlStore, nil
}

var schemaMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the schema to the latest supported version.",
	RunE: func(command *cobra.Command, args []string) error {
		command.SilenceUsage = true

		database, _ := command.Flags().GetString(databaseFlag)
		sqlStore, err := sqlStore(database)
		if err != nil {
			return err
		}
		defer sqlStore.Close()

		return sqlStore.Migrate()
	},
}
