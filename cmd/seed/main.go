package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jaswdr/faker"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"sharednotes/pkg/app"
	"sharednotes/pkg/config"
	"sharednotes/pkg/fakebackend"
	"sharednotes/pkg/logging"
)

var (
	configFile string
	username   string
	count      int
)

func init() {
	SeedCommand.Flags().StringVar(&configFile, "config", "", "configuration file")
	SeedCommand.Flags().StringVarP(&username, "user", "u", os.Getenv("SHAREDNOTES_USER"), "account that will own the notes")
	SeedCommand.Flags().IntVarP(&count, "count", "n", 10, "number of notes to create")
}

var SeedCommand = cobra.Command{
	Use:          "seed",
	Short:        "Fill an account with generated notes",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if username == "" {
			return fmt.Errorf("pass --user or set SHAREDNOTES_USER")
		}
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		logs, err := logging.New().WithLevel(cfg.LogLevel).WithFormat(logging.FormatConsole).Make()
		if err != nil {
			return err
		}
		defer logs.Close()

		password := os.Getenv("SHAREDNOTES_PASSWORD")
		if password == "" {
			if password, err = readPassword(fmt.Sprintf("Password for %s: ", username)); err != nil {
				return err
			}
		}

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg, logs.Logger)
		if err != nil {
			return err
		}
		return seed(ctx, a, password, count, cmd)
	},
}

func seed(ctx context.Context, a *app.App, password string, n int, cmd *cobra.Command) error {
	if _, err := a.Session.Login(ctx, username, password); err != nil {
		return err
	}
	defer a.Session.Logout(ctx)

	f := faker.New()
	for i := 0; i < n; i++ {
		note, err := a.Notes.Create(ctx, fakebackend.LoremNote(f))
		if err != nil {
			return fmt.Errorf("note %d: %w", i+1, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Generated note with ID: %s\n", note.ID)
	}
	return nil
}

func readPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func main() {
	if err := SeedCommand.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to seed notes:", err)
		os.Exit(1)
	}
}
