package cli

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/migrate"
)

// MigrateOptions holds flags for the migrate command.
type MigrateOptions struct {
	*RootOptions
	JSONPath  string
	DBPath    string
	BatchSize int
	NoBackup  bool
}

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MigrateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Import a legacy JSON results file into the store",
		Long: `Import numbers and statistics from the JSON file older versions
kept. The store keeps everything it already holds; legacy numbers are
added on top and duplicates collapse silently. Rerunning is safe.

Example:
  collatz migrate
  collatz migrate --json ./collatz_tested_numbers.json --no-backup`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return migrateLegacy(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.JSONPath, "json", migrate.DefaultLegacyPath, "path to the legacy JSON file")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (default from config)")
	cmd.Flags().IntVar(&opts.BatchSize, "batch-size", migrate.DefaultBatchSize, "numbers per insert transaction")
	cmd.Flags().BoolVar(&opts.NoBackup, "no-backup", false, "skip backing up an existing store first")

	return cmd
}

func migrateLegacy(cmd *cobra.Command, opts *MigrateOptions) error {
	cfg, logger, err := opts.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	dbPath := cfg.DB.Path
	if cmd.Flags().Changed("db") {
		dbPath = opts.DBPath
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	res, err := migrate.Import(ctx, migrate.Options{
		JSONPath:   opts.JSONPath,
		DBPath:     dbPath,
		BatchSize:  opts.BatchSize,
		SkipBackup: opts.NoBackup,
		Logger:     logger,
	})
	if errors.Is(err, migrate.ErrNoLegacyData) {
		fmt.Fprintf(out, "No legacy file at %s; nothing to migrate.\n", opts.JSONPath)
		return nil
	}
	if err != nil {
		return WrapExitError(ExitFailure, "migration failed", err)
	}

	if res.BackupPath != "" {
		fmt.Fprintf(out, "Previous store backed up to %s.\n", res.BackupPath)
	}
	fmt.Fprintf(out, "Migrated %s numbers (%s duplicates skipped).\n",
		humanize.Comma(res.Imported), humanize.Comma(res.Duplicates))
	if res.StatsImported {
		fmt.Fprintln(out, "All-time statistics imported.")
	}
	fmt.Fprintf(out, "Store now holds %s unique numbers.\n", humanize.Comma(res.StoreCount))
	return nil
}
