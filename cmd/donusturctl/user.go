package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/donustur/donustur/internal/identity"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage user accounts",
}

var userPromoteCmd = &cobra.Command{
	Use:   "promote <email>",
	Short: "Add a user to the admin group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd.Context())
		if err != nil {
			return err
		}
		defer db.Close()

		repo := identity.NewPostgresRepository(db)
		user, err := repo.FindByEmail(cmd.Context(), identity.NormalizeEmail(args[0]))
		if err != nil {
			return err
		}
		if slices.Contains(user.Groups, identity.GroupAdmin) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s is already an admin\n", user.Email)
			return nil
		}
		user, err = repo.Modify(cmd.Context(), user.ID, func(u *identity.User) error {
			if !slices.Contains(u.Groups, identity.GroupAdmin) {
				u.Groups = append(u.Groups, identity.GroupAdmin)
				u.UpdatedAt = time.Now().UTC()
			}
			return nil
		})
		if err != nil {
			return err
		}
		logger.Info("user promoted", "user_id", user.ID, "email", user.Email)
		fmt.Fprintf(cmd.OutOrStdout(), "User %s added to group %s\n", user.ID, identity.GroupAdmin)
		return nil
	},
}

func init() {
	userCmd.AddCommand(userPromoteCmd)
}
