package cli

import (
	"fmt"
	"math/big"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/collatzlab/collatz-tester-go/internal/collatz"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	StepLimit uint64
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <number>",
		Short: "Run one number through the full iteration",
		Long: `Evaluate a single number and print its step count and peak. The
store is not consulted or updated; this is a standalone check.

Example:
  collatz verify 27
  collatz verify 931386509544713451 --step-limit 5000`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return verifyNumber(cmd, opts, args[0])
		},
	}

	cmd.Flags().Uint64Var(&opts.StepLimit, "step-limit", collatz.DefaultStepLimit, "give up after this many steps")

	return cmd
}

// bigComma formats n with thousands separators. humanize.BigComma
// divides its argument down in place, so it gets a copy.
func bigComma(n *big.Int) string {
	return humanize.BigComma(new(big.Int).Set(n))
}

func verifyNumber(cmd *cobra.Command, opts *VerifyOptions, raw string) error {
	n, ok := new(big.Int).SetString(raw, 10)
	if !ok || n.Sign() <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%q is not a positive decimal integer", raw))
	}

	res := collatz.Evaluate(n, opts.StepLimit)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Number:     %s\n", bigComma(n))
	fmt.Fprintf(out, "Steps:      %s\n", humanize.Comma(int64(res.Steps)))
	fmt.Fprintf(out, "Peak:       %s (%sx the start)\n",
		bigComma(res.Peak), bigComma(collatz.PeakRatio(res.Peak, n)))
	if res.Terminated {
		fmt.Fprintln(out, "Reached 1:  yes")
	} else {
		fmt.Fprintf(out, "Reached 1:  no (stopped at the %s step limit)\n", humanize.Comma(int64(opts.StepLimit)))
	}
	return nil
}
