package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"sharednotes/pkg/app"
	"sharednotes/pkg/config"
	"sharednotes/pkg/logging"
)

var (
	// flags
	configFile  string
	envFiles    []string
	logLevel    string
	fakeBackend bool
	username    string

	cfg  *config.Config
	logs *logging.LogData
	dev  *devBackend
)

func init() {
	RootCmd.PersistentFlags().StringVar(&configFile, "config", "", "configuration file (default ~/.config/sharednotes/config.json)")
	RootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, ".env files to load")
	RootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	RootCmd.PersistentFlags().BoolVar(&fakeBackend, "fake-backend", false, "run against an in-process backend seeded with demo data")
	RootCmd.PersistentFlags().StringVarP(&username, "user", "u", os.Getenv("SHAREDNOTES_USER"), "account to sign in with")
}

var RootCmd = cobra.Command{
	Use:           "sharednotes",
	Short:         "Client for the shared notes service",
	Long:          "Sign in, read, edit and share notes kept by the shared notes backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configFile, envFiles...)
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		build := logging.New().WithLevel(cfg.LogLevel).WithFormat(cfg.LogFormat)
		if cfg.LogFile != "" {
			build = build.FromPath(cfg.LogFile)
		}
		logs, err = build.Make()
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}

		if fakeBackend {
			dev, err = startDevBackend(logging.Component(logs.Logger, "fakebackend"))
			if err != nil {
				return err
			}
			cfg.APIURL = dev.URL
			cfg.Identity.Provider = config.ProviderMemory
			if username == "" {
				username = demoUsername
			}
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dev != nil {
			dev.Close()
		}
		if logs != nil {
			logs.Close()
		}
	},
}

// newApp builds the client for the loaded configuration
func newApp(ctx context.Context) (*app.App, error) {
	opts := []app.Option{app.WithLogData(logs)}
	if dev != nil {
		opts = append(opts, app.WithProvider(dev.Provider))
	}
	return app.New(ctx, cfg, logs.Logger, opts...)
}

// signedIn builds the client and signs in as --user, prompting for the
// password unless SHAREDNOTES_PASSWORD is set
func signedIn(ctx context.Context) (*app.App, error) {
	a, err := newApp(ctx)
	if err != nil {
		return nil, err
	}
	if username == "" {
		return nil, fmt.Errorf("no account: pass --user or set SHAREDNOTES_USER")
	}

	password := os.Getenv("SHAREDNOTES_PASSWORD")
	if password == "" && dev != nil && username == demoUsername {
		password = demoPassword
	}
	if password == "" {
		password, err = readPassword(fmt.Sprintf("Password for %s: ", username))
		if err != nil {
			return nil, err
		}
	}

	if _, err := a.Session.Login(ctx, username, password); err != nil {
		return nil, userError(err)
	}
	if _, err := a.Notes.FetchAll(ctx); err != nil {
		return nil, userError(err)
	}
	return a, nil
}
