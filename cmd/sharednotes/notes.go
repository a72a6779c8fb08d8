package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sharednotes/pkg/models"
	"sharednotes/pkg/utils"
)

var (
	listScope string
	listQuery string
	noteTitle string
	noteBody  string
	shareTier string
	shareKey  string
)

func init() {
	NotesListCommand.Flags().StringVar(&listScope, "scope", "", "mine or shared")
	NotesListCommand.Flags().StringVarP(&listQuery, "query", "q", "", "only notes whose title or body contain the text")

	NotesCreateCommand.Flags().StringVarP(&noteTitle, "title", "t", "", "note title")
	NotesCreateCommand.Flags().StringVarP(&noteBody, "body", "b", "", "note body, - reads stdin")
	NotesCreateCommand.MarkFlagRequired("title")

	NotesShareCommand.Flags().StringVar(&shareTier, "tier", "R", "permission to grant: R, W or S")
	NotesShareCommand.Flags().StringVar(&shareKey, "encryption-key", "", "note key encrypted for the recipient")

	NotesCommand.AddCommand(&NotesListCommand)
	NotesCommand.AddCommand(&NotesCreateCommand)
	NotesCommand.AddCommand(&NotesRemoveCommand)
	NotesCommand.AddCommand(&NotesShareCommand)
	RootCmd.AddCommand(&NotesCommand)
}

var NotesCommand = cobra.Command{
	Use:   "notes",
	Short: "List, create, remove and share notes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var NotesListCommand = cobra.Command{
	Use:   "list",
	Short: "List the notes you can read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		var notes []*models.Note
		switch listScope {
		case "":
			notes = a.Notes.Notes()
		case "mine":
			notes = a.Notes.MyNotes()
		case "shared":
			notes = a.Notes.SharedNotes()
		default:
			return fmt.Errorf("unknown scope %q: use mine or shared", listScope)
		}
		if listQuery != "" {
			matches := make(map[string]bool)
			for _, n := range a.Notes.Search(listQuery) {
				matches[n.ID] = true
			}
			filtered := notes[:0]
			for _, n := range notes {
				if matches[n.ID] {
					filtered = append(filtered, n)
				}
			}
			notes = filtered
		}

		printNotes(cmd.OutOrStdout(), notes)
		return nil
	},
}

func printNotes(out io.Writer, notes []*models.Note) {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIER\tOWNER\tTITLE")
	for _, n := range notes {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", n.ID, n.Permission.Code(), n.Owner, n.Title)
	}
	w.Flush()
}

var NotesCreateCommand = cobra.Command{
	Use:   "create",
	Short: "Create a note",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		body := noteBody
		if body == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			body = string(data)
		}

		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		note, err := a.Notes.Create(cmd.Context(), models.NewNote{Title: noteTitle, Body: body})
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), note.ID)
		return nil
	},
}

var NotesRemoveCommand = cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Delete a note you own or leave one shared with you",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		id, err := resolveNote(a.Notes.Notes(), args[0])
		if err != nil {
			return err
		}
		if err := a.Sharing.RemoveAccess(cmd.Context(), id); err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "removed", utils.ShortID(id))
		return nil
	},
}

var NotesShareCommand = cobra.Command{
	Use:   "share <id> <username>",
	Short: "Share a note with another user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tier, err := models.ParsePermission(strings.ToUpper(shareTier))
		if err != nil {
			return err
		}

		a, err := signedIn(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Session.Logout(cmd.Context())

		id, err := resolveNote(a.Notes.Notes(), args[0])
		if err != nil {
			return err
		}
		users, err := a.Sharing.ListShareableUsers(cmd.Context(), id)
		if err != nil {
			return userError(err)
		}

		var userID string
		for _, u := range users {
			if u.Username == args[1] {
				userID = u.ID
				break
			}
		}
		if userID == "" {
			return fmt.Errorf("cannot share with %q", args[1])
		}

		msg, err := a.Sharing.ShareNote(cmd.Context(), id, userID, tier, shareKey)
		if err != nil {
			return userError(err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg)
		return nil
	},
}

// resolveNote accepts a full id or an unambiguous prefix
func resolveNote(notes []*models.Note, ref string) (string, error) {
	var match string
	for _, n := range notes {
		if n.ID == ref {
			return n.ID, nil
		}
		if strings.HasPrefix(n.ID, ref) {
			if match != "" {
				return "", fmt.Errorf("note id %q is ambiguous", ref)
			}
			match = n.ID
		}
	}
	if match == "" {
		return "", fmt.Errorf("no note %q", ref)
	}
	return match, nil
}
