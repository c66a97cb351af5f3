package cli

import (
	"context"
	"encoding/json"
	"math/big"
	"path/filepath"
	"strings"
	"testing"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

func seedStore(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "tested.db")

	st, err := store.Open(ctx, dbPath, store.Options{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	fps := []fingerprint.Fingerprint{
		fingerprint.New(big.NewInt(27)),
		fingerprint.New(big.NewInt(31)),
	}
	if err := st.InsertMany(ctx, fps); err != nil {
		t.Fatalf("Failed to seed store: %v", err)
	}

	at := &store.AllTimeStats{LongestSequence: 111, TotalSteps: 217, TotalNumbers: 2}
	at.LongestNum.SetInt64(27)
	at.HighestPeak.SetInt64(9232)
	at.HighestPeakNum.SetInt64(27)
	doc, err := at.Encode()
	if err != nil {
		t.Fatalf("Failed to encode stats: %v", err)
	}
	if err := st.StatsSet(ctx, store.KeyAllTime, doc); err != nil {
		t.Fatalf("Failed to write stats: %v", err)
	}
	return dbPath
}

func TestStatsText(t *testing.T) {
	pinConfig(t)
	dbPath := seedStore(t)

	out, err := runCLI(t, "stats", "--db", dbPath, "--log-level", "error")
	if err != nil {
		t.Fatalf("Failed to show stats: %v", err)
	}

	for _, want := range []string{
		"Unique tested:     2",
		"Longest sequence:  111 steps (number: 27)",
		"Highest peak:      9,232 (from: 27)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestStatsJSON(t *testing.T) {
	pinConfig(t)
	dbPath := seedStore(t)

	out, err := runCLI(t, "stats", "--db", dbPath, "--json", "--log-level", "error")
	if err != nil {
		t.Fatalf("Failed to show stats: %v", err)
	}

	var doc struct {
		Path        string `json:"path"`
		TestedTotal int64  `json:"tested_total"`
		AllTime     struct {
			LongestSequence uint64 `json:"longest_sequence"`
		} `json:"all_time"`
	}
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("Failed to decode JSON output: %v\n%s", err, out)
	}
	if doc.TestedTotal != 2 || doc.AllTime.LongestSequence != 111 {
		t.Errorf("Unexpected stats document: %+v", doc)
	}
	if doc.Path != dbPath {
		t.Errorf("Expected path %q, got %q", dbPath, doc.Path)
	}
}

func TestStatsMissingStore(t *testing.T) {
	pinConfig(t)
	dbPath := filepath.Join(t.TempDir(), "missing.db")

	_, err := runCLI(t, "stats", "--db", dbPath, "--log-level", "error")
	if err == nil {
		t.Fatal("Expected error for missing store")
	}
	if got := GetExitCode(err); got != ExitCommandError {
		t.Errorf("Expected exit code %d, got %d", ExitCommandError, got)
	}
}
