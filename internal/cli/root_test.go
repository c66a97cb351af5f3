package cli

import (
	"os"
	"path/filepath"
	"testing"
)

// pinConfig points config discovery at an empty temp file so tests never
// pick up a real config from the host.
func pinConfig(t *testing.T) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "collatz.yaml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("COLLATZ_CONFIG", path)
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	if cmd.Use != "collatz" {
		t.Errorf("Expected use 'collatz', got %q", cmd.Use)
	}

	for _, name := range []string{"run", "verify", "stats", "migrate", "serve"} {
		sub, _, err := cmd.Find([]string{name})
		if err != nil || sub.Name() != name {
			t.Errorf("Expected subcommand %q, got %v (err %v)", name, sub, err)
		}
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"config", "log-level", "log-format"} {
		if cmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("Expected persistent flag %q", name)
		}
	}
}

func TestSubcommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	cases := []struct {
		sub  string
		flag string
	}{
		{"run", "tests"},
		{"run", "seed"},
		{"run", "db"},
		{"run", "results-log"},
		{"verify", "step-limit"},
		{"stats", "json"},
		{"migrate", "no-backup"},
		{"serve", "addr"},
	}
	for _, tc := range cases {
		sub, _, err := cmd.Find([]string{tc.sub})
		if err != nil {
			t.Fatalf("Failed to find %q: %v", tc.sub, err)
		}
		if sub.Flags().Lookup(tc.flag) == nil {
			t.Errorf("Expected %s to have flag --%s", tc.sub, tc.flag)
		}
	}
}

func TestExitCodes(t *testing.T) {
	if got := GetExitCode(nil); got != ExitSuccess {
		t.Errorf("Expected 0 for nil error, got %d", got)
	}
	if got := GetExitCode(NewExitError(ExitCommandError, "bad flag")); got != ExitCommandError {
		t.Errorf("Expected 2, got %d", got)
	}
	if got := GetExitCode(os.ErrNotExist); got != ExitFailure {
		t.Errorf("Expected 1 for plain error, got %d", got)
	}
}
