package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/api"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr   string
	DBPath string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a read-only HTTP view of the store",
		Long: `Run the inspector API: all-time statistics, membership probes, and
Prometheus metrics over HTTP. The store is opened read-only, so a
testing session can keep writing to it from another process.

Example:
  collatz serve
  collatz serve --addr 127.0.0.1:9090`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveInspector(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (default from config)")

	return cmd
}

func serveInspector(cmd *cobra.Command, opts *ServeOptions) error {
	cfg, logger, err := opts.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("addr") {
		cfg.Serve.Addr = opts.Addr
	}
	if cmd.Flags().Changed("db") {
		cfg.DB.Path = opts.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	st, err := store.Open(ctx, cfg.DB.Path, store.Options{
		Logger:      logger,
		ReadOnly:    true,
		BusyTimeout: cfg.DB.BusyTimeout,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	srv := api.New(st, cfg.Serve.Addr, logger)
	if err := srv.Start(); err != nil {
		return WrapExitError(ExitCommandError, "failed to start inspector", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Inspector listening on %s. Press Ctrl-C to stop.\n", cfg.Serve.Addr)

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return WrapExitError(ExitFailure, "shutdown failed", err)
	}
	logger.Info().Msg("inspector stopped")
	return nil
}
