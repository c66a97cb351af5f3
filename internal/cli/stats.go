package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// StatsOptions holds flags for the stats command.
type StatsOptions struct {
	*RootOptions
	DBPath string
	JSON   bool
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show all-time statistics from the store",
		Long: `Open the store read-only and print the cumulative records: how many
unique numbers have ever been tested, the longest sequence, and the
highest peak.

Example:
  collatz stats
  collatz stats --db ./collatz_tested.db --json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStats(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.DBPath, "db", "", "path to the SQLite store (default from config)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "print statistics as JSON")

	return cmd
}

func showStats(cmd *cobra.Command, opts *StatsOptions) error {
	cfg, logger, err := opts.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if cmd.Flags().Changed("db") {
		cfg.DB.Path = opts.DBPath
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

	count, err := st.Count(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store", err)
	}
	at, err := st.LoadAllTime(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to read store", err)
	}

	out := cmd.OutOrStdout()
	if opts.JSON {
		doc := struct {
			Path        string              `json:"path"`
			TestedTotal int64               `json:"tested_total"`
			SizeBytes   int64               `json:"size_bytes"`
			AllTime     *store.AllTimeStats `json:"all_time"`
		}{st.Path(), count, st.SizeBytes(), at}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(doc)
	}

	fmt.Fprintf(out, "Store:             %s (%s)\n", st.Path(), humanize.Bytes(uint64(st.SizeBytes())))
	fmt.Fprintf(out, "Unique tested:     %s\n", humanize.Comma(count))
	fmt.Fprintf(out, "Total steps:       %s\n", humanize.Comma(int64(at.TotalSteps)))
	fmt.Fprintf(out, "Longest sequence:  %s steps (number: %s)\n",
		humanize.Comma(int64(at.LongestSequence)), bigComma(&at.LongestNum.Int))
	fmt.Fprintf(out, "Highest peak:      %s (from: %s)\n",
		bigComma(&at.HighestPeak.Int), bigComma(&at.HighestPeakNum.Int))
	return nil
}
