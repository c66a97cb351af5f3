package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default configuration is invalid: %v", err)
	}

	min, max, err := cfg.Run.Range()
	if err != nil {
		t.Fatalf("Range: %v", err)
	}
	wantMin := new(big.Int).Exp(big.NewInt(10), big.NewInt(10), nil)
	wantMax := new(big.Int).Exp(big.NewInt(10), big.NewInt(33), nil)
	if min.Cmp(wantMin) != 0 {
		t.Errorf("default min = %s, want 10^10", min)
	}
	if max.Cmp(wantMax) != 0 {
		t.Errorf("default max = %s, want 10^33", max)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Tests != 1_000_000 {
		t.Errorf("tests = %d, want 1000000", cfg.Run.Tests)
	}
	if cfg.DB.Path != "collatz_tested.db" {
		t.Errorf("db path = %q", cfg.DB.Path)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collatz.yaml")
	body := `
db:
  path: /tmp/other.db
run:
  tests: 500
  batch_size: 25
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DB.Path != "/tmp/other.db" {
		t.Errorf("db path = %q", cfg.DB.Path)
	}
	if cfg.Run.Tests != 500 {
		t.Errorf("tests = %d, want 500", cfg.Run.Tests)
	}
	if cfg.Run.BatchSize != 25 {
		t.Errorf("batch_size = %d, want 25", cfg.Run.BatchSize)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level = %q, want debug", cfg.Log.Level)
	}
	// Untouched keys keep their defaults.
	if cfg.Run.StepLimit != 100_000 {
		t.Errorf("step_limit = %d, want default", cfg.Run.StepLimit)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "collatz.yaml")
	if err := os.WriteFile(path, []byte("run:\n  tests: 500\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("COLLATZ_RUN_TESTS", "77")
	t.Setenv("COLLATZ_DB_PATH", "/tmp/env.db")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Run.Tests != 77 {
		t.Errorf("tests = %d, want env override 77", cfg.Run.Tests)
	}
	if cfg.DB.Path != "/tmp/env.db" {
		t.Errorf("db path = %q, want env override", cfg.DB.Path)
	}
}

func TestLoadExplicitMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicit missing config file must fail")
	}
}

func TestEnvTransform(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"COLLATZ_DB_PATH", "db.path"},
		{"COLLATZ_RUN_BATCH_SIZE", "run.batch_size"},
		{"COLLATZ_RUN_STEP_LIMIT", "run.step_limit"},
		{"COLLATZ_SERVE_ADDR", "serve.addr"},
		{"COLLATZ_LOG_LEVEL", "log.level"},
		{"COLLATZ_DB_BUSY_TIMEOUT", "db.busy_timeout"},
	}
	for _, tc := range cases {
		if got := envTransform(tc.in); got != tc.want {
			t.Errorf("envTransform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero tests", func(c *Config) { c.Run.Tests = 0 }},
		{"zero step limit", func(c *Config) { c.Run.StepLimit = 0 }},
		{"empty db path", func(c *Config) { c.DB.Path = "" }},
		{"bad min", func(c *Config) { c.Run.Min = "ten" }},
		{"inverted range", func(c *Config) { c.Run.Min = "100"; c.Run.Max = "10" }},
		{"zero min", func(c *Config) { c.Run.Min = "0" }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
		{"empty serve addr", func(c *Config) { c.Serve.Addr = "" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: validation passed, want error", tc.name)
		}
	}
}
