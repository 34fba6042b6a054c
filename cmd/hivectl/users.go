package main

import (
	"fmt"
	"hive-chat/repositories"

	"github.com/spf13/cobra"
)

func newUsersCmd(opts *options) *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "Manage the user directory",
	}
	users.AddCommand(&cobra.Command{
		Use:   "add <username> <email>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openBadger(opts.badgerPath, false)
			if err != nil {
				return err
			}
			defer db.Close()
			user, err := repositories.NewUserRepository(db).CreateUser(cmd.Context(), args[0], args[1])
			if err != nil {
				return fmt.Errorf("could not create %s: %w", args[0], err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), user.ID)
			return nil
		},
	})
	users.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List every user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := openBadger(opts.badgerPath, true)
			if err != nil {
				return err
			}
			defer db.Close()
			list, err := repositories.NewUserRepository(db).ListUsers(cmd.Context(), "")
			if err != nil {
				return err
			}
			table := newTable(cmd, "ID", "Username", "Email")
			for _, u := range list {
				table.Append([]string{u.ID, u.Username, u.Email})
			}
			table.Render()
			return nil
		},
	})
	return users
}
