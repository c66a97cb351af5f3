// Package report renders session results: the console summary at the
// end of a run and the append-only results log block. Output format
// follows the log files earlier tooling produced, so history files stay
// uniform across versions.
package report

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/collatzlab/collatz-tester-go/internal/collatz"
	"github.com/collatzlab/collatz-tester-go/internal/run"
)

const separator = "======================================================================"

// Totals carries store-level counts the session itself does not know.
type Totals struct {
	// UniqueAfter is the store count after the session committed.
	UniqueAfter int64
	// UniqueBefore is the store count when the session started.
	UniqueBefore int64
}

// LogEntry renders one results-log block. Numbers are thousands-
// separated and the shape matches blocks written by earlier tooling.
func LogEntry(sess *run.Session, uniqueAfter int64, now time.Time) string {
	var b strings.Builder
	a := sess.AllTime

	fmt.Fprintf(&b, "%s\n", separator)
	fmt.Fprintf(&b, "Session Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Numbers tested this session: %s\n", humanize.Comma(int64(sess.Tested)))
	fmt.Fprintf(&b, "Total unique numbers tested: %s\n", humanize.Comma(uniqueAfter))
	fmt.Fprintf(&b, "Longest sequence: %s steps (number: %s)\n",
		humanize.Comma(int64(a.LongestSequence)), bigComma(&a.LongestNum.Int))
	fmt.Fprintf(&b, "Highest peak: %s (from: %s)\n",
		bigComma(&a.HighestPeak.Int), bigComma(&a.HighestPeakNum.Int))
	fmt.Fprintf(&b, "Average steps: %.2f\n", sess.MeanSteps())
	fmt.Fprintf(&b, "%s\n\n", separator)
	return b.String()
}

// AppendFile appends entry to the results log at path, creating it on
// first use.
func AppendFile(path, entry string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open results log: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(entry); err != nil {
		return fmt.Errorf("append results log: %w", err)
	}
	return f.Close()
}

// Summary renders the end-of-run console report.
func Summary(sess *run.Session, t Totals) string {
	var b strings.Builder
	a := sess.AllTime

	fmt.Fprintf(&b, "\n%s\n", separator)
	fmt.Fprintf(&b, "SESSION COMPLETE\n")
	fmt.Fprintf(&b, "%s\n\n", separator)

	fmt.Fprintf(&b, "This session:\n")
	fmt.Fprintf(&b, "  New numbers tested:  %s\n", humanize.Comma(int64(sess.Tested)))
	fmt.Fprintf(&b, "  Duplicates skipped:  %s (session cache %s, store %s)\n",
		humanize.Comma(int64(sess.DuplicatesCache+sess.DuplicatesStore)),
		humanize.Comma(int64(sess.DuplicatesCache)),
		humanize.Comma(int64(sess.DuplicatesStore)))
	fmt.Fprintf(&b, "  Generation attempts: %s\n", humanize.Comma(int64(sess.Attempts)))
	fmt.Fprintf(&b, "  All sequences reached 1: %t\n", len(sess.Anomalies) == 0)
	fmt.Fprintf(&b, "  Session average steps: %.2f\n", sess.MeanSteps())
	if sess.ShortestNum != nil {
		fmt.Fprintf(&b, "  Shortest sequence: %s steps (number: %s)\n",
			humanize.Comma(int64(sess.ShortestSteps)), bigComma(sess.ShortestNum))
	}
	fmt.Fprintf(&b, "  Execution time: %.2f seconds\n", sess.Elapsed.Seconds())
	fmt.Fprintf(&b, "  Testing rate: %.0f numbers/second\n", sess.Rate())

	fmt.Fprintf(&b, "\nAll-time totals:\n")
	fmt.Fprintf(&b, "  Total unique numbers ever tested: %s\n", humanize.Comma(t.UniqueAfter))
	fmt.Fprintf(&b, "  Tested before this session:       %s\n", humanize.Comma(t.UniqueBefore))
	if a.TotalNumbers > 0 {
		fmt.Fprintf(&b, "  All-time average steps:           %.2f\n",
			float64(a.TotalSteps)/float64(a.TotalNumbers))
	}

	fmt.Fprintf(&b, "\nAll-time records:\n")
	fmt.Fprintf(&b, "  Longest sequence ever: %s steps%s\n",
		humanize.Comma(int64(a.LongestSequence)), recordMark(sess.NewLongestRecord))
	fmt.Fprintf(&b, "    number: %s\n", bigComma(&a.LongestNum.Int))
	fmt.Fprintf(&b, "  Highest peak ever: %s%s\n",
		bigComma(&a.HighestPeak.Int), recordMark(sess.NewPeakRecord))
	fmt.Fprintf(&b, "    number: %s\n", bigComma(&a.HighestPeakNum.Int))
	if a.HighestPeakNum.Sign() > 0 {
		ratio := collatz.PeakRatio(&a.HighestPeak.Int, &a.HighestPeakNum.Int)
		fmt.Fprintf(&b, "    peak is %sx the starting number\n", bigComma(ratio))
	}

	if len(sess.TopSequences) > 0 {
		fmt.Fprintf(&b, "\nSession top %d longest:\n", len(sess.TopSequences))
		for i, e := range sess.TopSequences {
			fmt.Fprintf(&b, "  %2d. %s -> %s steps\n",
				i+1, bigComma(e.Num), humanize.Comma(int64(e.Steps)))
		}
	}
	if len(sess.TopPeaks) > 0 {
		fmt.Fprintf(&b, "\nSession top %d peaks:\n", len(sess.TopPeaks))
		for i, e := range sess.TopPeaks {
			fmt.Fprintf(&b, "  %2d. %s -> %s (%sx)\n",
				i+1, bigComma(e.Num), bigComma(e.Peak),
				bigComma(collatz.PeakRatio(e.Peak, e.Num)))
		}
	}

	if len(sess.Anomalies) > 0 {
		fmt.Fprintf(&b, "\nAnomalies (step limit exhausted, kept for review):\n")
		for _, e := range sess.Anomalies {
			fmt.Fprintf(&b, "  %s stopped after %s steps\n",
				bigComma(e.Num), humanize.Comma(int64(e.Steps)))
		}
	}

	fmt.Fprintf(&b, "%s\n", separator)
	return b.String()
}

func recordMark(isNew bool) string {
	if isNew {
		return "  (NEW RECORD)"
	}
	return ""
}

// bigComma formats n with thousands separators. humanize.BigComma
// divides its argument down in place, so it gets a copy.
func bigComma(n *big.Int) string {
	return humanize.BigComma(new(big.Int).Set(n))
}
