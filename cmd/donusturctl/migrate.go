package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donustur/donustur/internal/infra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		applied, err := infra.Migrate(cmd.Context(), db)
		if err != nil {
			return err
		}
		if len(applied) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}
		for _, v := range applied {
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", v)
		}
		return nil
	},
}
