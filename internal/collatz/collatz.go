// Package collatz evaluates the 3x+1 iteration with exact big-integer
// arithmetic.
package collatz

import "math/big"

// DefaultStepLimit bounds a single evaluation. No sequence from a start
// below 2^68 is known to come anywhere near it, so an evaluation that
// hits the limit is a finding to record, not an error.
const DefaultStepLimit = 100000

var (
	one   = big.NewInt(1)
	three = big.NewInt(3)
)

// Result describes one evaluated sequence.
type Result struct {
	// Steps is the number of iterations applied before stopping.
	Steps uint64
	// Peak is the largest value visited, including the starting value.
	Peak *big.Int
	// Terminated reports whether the sequence reached 1. False means the
	// step limit was exhausted first.
	Terminated bool
}

// Evaluate iterates from n until the sequence reaches 1 or stepLimit
// iterations have been applied: halve when even, 3x+1 when odd. n must be
// >= 1 and is not modified. Evaluate(1) performs zero steps.
func Evaluate(n *big.Int, stepLimit uint64) Result {
	current := new(big.Int).Set(n)
	peak := new(big.Int).Set(n)

	var steps uint64
	for current.Cmp(one) != 0 && steps < stepLimit {
		if current.Bit(0) == 0 {
			current.Rsh(current, 1)
		} else {
			current.Mul(current, three)
			current.Add(current, one)
		}
		if current.Cmp(peak) > 0 {
			peak.Set(current)
		}
		steps++
	}

	return Result{
		Steps:      steps,
		Peak:       peak,
		Terminated: current.Cmp(one) == 0,
	}
}

// PeakRatio reports how many times larger peak is than start, rounded
// down. Display helper; returns 0 when start is zero.
func PeakRatio(peak, start *big.Int) *big.Int {
	if start.Sign() == 0 {
		return new(big.Int)
	}
	return new(big.Int).Quo(peak, start)
}
