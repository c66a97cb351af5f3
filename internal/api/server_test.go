package api

import (
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/collatzlab/collatz-tester-go/internal/fingerprint"
	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// newTestServer opens a store in a temp dir, seeds it with the given
// numbers plus an all-time stats document, and returns a running test
// server over the inspector routes.
func newTestServer(t *testing.T, seed ...int64) (*httptest.Server, *store.Store) {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "tested.db"), store.Options{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	fps := make([]fingerprint.Fingerprint, 0, len(seed))
	for _, n := range seed {
		fps = append(fps, fingerprint.New(big.NewInt(n)))
	}
	if len(fps) > 0 {
		if err := st.InsertMany(ctx, fps); err != nil {
			t.Fatalf("Failed to seed store: %v", err)
		}
	}

	at := &store.AllTimeStats{
		LongestSequence: 111,
		TotalSteps:      1500,
		TotalNumbers:    uint64(len(seed)),
	}
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
	if err := st.StatsSet(ctx, store.KeyLastSession, "test-session"); err != nil {
		t.Fatalf("Failed to write session marker: %v", err)
	}

	srv := httptest.NewServer(New(st, "", zerolog.Nop()).Routes())
	t.Cleanup(srv.Close)
	return srv, st
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return resp.StatusCode
}

func TestStatsEndpoint(t *testing.T) {
	srv, st := newTestServer(t, 27, 31, 41)

	var resp StatsResponse
	if status := getJSON(t, srv.URL+"/v1/stats", &resp); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}

	if resp.TestedTotal != 3 {
		t.Errorf("Expected tested_total 3, got %d", resp.TestedTotal)
	}
	if resp.Path != st.Path() {
		t.Errorf("Expected path %q, got %q", st.Path(), resp.Path)
	}
	if resp.AllTime == nil {
		t.Fatal("Expected all-time stats in response")
	}
	if resp.AllTime.LongestSequence != 111 {
		t.Errorf("Expected all-time longest 111, got %d", resp.AllTime.LongestSequence)
	}
	if resp.AllTime.HighestPeak.Int64() != 9232 {
		t.Errorf("Expected highest peak 9232, got %s", resp.AllTime.HighestPeak.String())
	}
	if resp.LastSession != "test-session" {
		t.Errorf("Expected last session marker, got %q", resp.LastSession)
	}
	if resp.SizeBytes <= 0 {
		t.Errorf("Expected positive size, got %d", resp.SizeBytes)
	}
}

func TestTestedEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 27)

	var resp TestedResponse
	if status := getJSON(t, srv.URL+"/v1/tested/27", &resp); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if !resp.Tested || resp.N != "27" {
		t.Errorf("Expected 27 to be tested, got %+v", resp)
	}

	if status := getJSON(t, srv.URL+"/v1/tested/28", &resp); status != http.StatusOK {
		t.Fatalf("Expected 200, got %d", status)
	}
	if resp.Tested {
		t.Errorf("Expected 28 to be untested, got %+v", resp)
	}
}

func TestTestedRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, raw := range []string{"abc", "0", "-5", "27.5", "0x1b"} {
		var resp map[string]string
		if status := getJSON(t, srv.URL+"/v1/tested/"+raw, &resp); status != http.StatusBadRequest {
			t.Errorf("Expected 400 for %q, got %d", raw, status)
		}
		if resp["error"] == "" {
			t.Errorf("Expected error message for %q, got %v", raw, resp)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200, got %d", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, 27, 31)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200, got %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	for _, want := range []string{
		"collatz_tested_total 2",
		"collatz_longest_sequence_steps 111",
		"collatz_total_steps 1500",
		"collatz_store_size_bytes",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected metrics output to contain %q", want)
		}
	}
}

func TestServerStartShutdown(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "tested.db"), store.Options{})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	s := New(st, "127.0.0.1:0", zerolog.Nop())
	if err := s.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	if err := s.Shutdown(ctx); err != nil {
		t.Errorf("Failed to shut down: %v", err)
	}
}
