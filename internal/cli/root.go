// Package cli assembles the collatz command tree. Each subcommand is a
// constructor so tests can build and execute commands in isolation.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/config"
	"github.com/collatzlab/collatz-tester-go/internal/logging"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
}

// NewRootCommand creates the root command for the collatz CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "collatz",
		Short: "Persistent Collatz conjecture tester",
		Long: `collatz samples huge random integers, runs each through the 3x+1
iteration until it reaches 1, and remembers every number ever tested in
a crash-safe SQLite store so no work is repeated across sessions.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to config file (default: search for collatz.yaml)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "", "log format (auto|json|console)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewServeCommand(opts))

	return cmd
}

// Load builds the effective configuration and logger for a command:
// defaults, then file, then environment, then the global flag overrides.
func (o *RootOptions) Load() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.LogFormat != "" {
		cfg.Log.Format = o.LogFormat
	}
	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, zerolog.Logger{}, err
	}
	return cfg, logger, nil
}

// signalContext derives a context from the command that cancels on
// SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
