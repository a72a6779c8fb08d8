package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	RootCmd.AddCommand(&WhoamiCommand)
}

var WhoamiCommand = cobra.Command{
	Use:   "whoami",
	Short: "Sign in and print the account",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		user := a.Session.CurrentUser()
		fmt.Fprintf(cmd.OutOrStdout(), "%s <%s>\nid: %s\nnotes: %d owned, %d shared with you\n",
			user.Username, user.Email, user.ID, len(a.Notes.MyNotes()), len(a.Notes.SharedNotes()))
		return nil
	},
}
