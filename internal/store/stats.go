package store

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	json "github.com/goccy/go-json"
)

// BigInt is a big.Int that marshals as a bare JSON number. The sampled
// values run far past 64 bits, and the stats document is shared with
// other tooling that expects plain integers there. Unmarshal also
// accepts quoted digits for readers that stringified them.
type BigInt struct {
	big.Int
}

// MarshalJSON implements json.Marshaler.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return []byte(b.Text(10)), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *BigInt) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		b.SetInt64(0)
		return nil
	}
	if _, ok := b.SetString(s, 10); !ok {
		return fmt.Errorf("invalid integer %q in stats", s)
	}
	return nil
}

// AllTimeStats is the JSON document stored under KeyAllTime. Field names
// match what earlier tooling wrote, so stats survive in both directions.
type AllTimeStats struct {
	LongestSequence uint64 `json:"longest_sequence"`
	LongestNum      BigInt `json:"longest_num"`
	HighestPeak     BigInt `json:"highest_peak"`
	HighestPeakNum  BigInt `json:"highest_peak_num"`
	TotalSteps      uint64 `json:"total_steps"`
	TotalNumbers    uint64 `json:"total_numbers"`
}

// Observe folds one terminated evaluation into the running records and
// reports which all-time records it broke.
func (a *AllTimeStats) Observe(n *big.Int, steps uint64, peak *big.Int) (newLongest, newPeak bool) {
	a.TotalNumbers++
	a.TotalSteps += steps
	if steps > a.LongestSequence {
		a.LongestSequence = steps
		a.LongestNum.Set(n)
		newLongest = true
	}
	if a.HighestPeak.Cmp(peak) < 0 {
		a.HighestPeak.Set(peak)
		a.HighestPeakNum.Set(n)
		newPeak = true
	}
	return newLongest, newPeak
}

// Encode renders the document for a stats row.
func (a *AllTimeStats) Encode() (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode all-time stats: %w", err)
	}
	return string(raw), nil
}

// LoadAllTime reads the all-time stats document, returning a zeroed
// document when none has been written yet.
func (s *Store) LoadAllTime(ctx context.Context) (*AllTimeStats, error) {
	raw, ok, err := s.StatsGet(ctx, KeyAllTime)
	if err != nil {
		return nil, err
	}
	stats := &AllTimeStats{}
	if !ok {
		return stats, nil
	}
	if err := json.Unmarshal([]byte(raw), stats); err != nil {
		return nil, fmt.Errorf("decode all-time stats: %w", err)
	}
	return stats, nil
}
