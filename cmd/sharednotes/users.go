package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&UsersCommand)
}

var UsersCommand = cobra.Command{
	Use:   "users",
	Short: "List the users notes can be shared with",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		users, err := a.Client.ListUsers(cmd.Context())
		if err != nil {
			return userError(err)
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSERNAME")
		for _, u := range users {
			fmt.Fprintf(w, "%s\t%s\n", u.ID, u.Username)
		}
		return w.Flush()
	},
}
