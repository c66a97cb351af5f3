// Package config loads layered configuration: struct defaults, then an
// optional YAML file, then COLLATZ_* environment variables, each layer
// overriding the one before it.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/collatzlab/collatz-tester-go/internal/store"
)

// EnvPrefix scopes which environment variables are read.
const EnvPrefix = "COLLATZ_"

// ConfigPathEnvVar overrides the config file search.
const ConfigPathEnvVar = "COLLATZ_CONFIG"

// DefaultConfigPaths is searched in order; the first existing file wins.
var DefaultConfigPaths = []string{
	"collatz.yaml",
	"collatz.yml",
	"/etc/collatz/config.yaml",
}

// Config is the full program configuration.
type Config struct {
	DB    DBConfig    `koanf:"db"`
	Run   RunConfig   `koanf:"run"`
	Serve ServeConfig `koanf:"serve"`
	Log   LogConfig   `koanf:"log"`
}

// DBConfig controls the fingerprint store.
type DBConfig struct {
	Path string `koanf:"path"`
	// BusyTimeout is how long SQLite waits on a locked file.
	BusyTimeout time.Duration `koanf:"busy_timeout"`
	// QuarantineCorrupt moves an unusable store aside instead of
	// deleting it before recreation.
	QuarantineCorrupt bool `koanf:"quarantine_corrupt"`
}

// RunConfig controls a testing session. Min and Max are decimal strings
// because the sampling bounds do not fit in any machine integer.
type RunConfig struct {
	Tests     uint64 `koanf:"tests"`
	Min       string `koanf:"min"`
	Max       string `koanf:"max"`
	BatchSize int    `koanf:"batch_size"`
	StepLimit uint64 `koanf:"step_limit"`
	// Seed zero means draw seeds from OS entropy; any other value makes
	// the candidate sequence reproducible.
	Seed       int64  `koanf:"seed"`
	ResultsLog string `koanf:"results_log"`
}

// ServeConfig controls the read-only HTTP inspector.
type ServeConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Path:        store.DefaultPath,
			BusyTimeout: 5 * time.Second,
		},
		Run: RunConfig{
			Tests:      1_000_000,
			Min:        "10000000000",                       // 10^10
			Max:        "1000000000000000000000000000000000", // 10^33
			BatchSize:  1000,
			StepLimit:  100_000,
			Seed:       0,
			ResultsLog: "collatz_results_log.txt",
		},
		Serve: ServeConfig{
			Addr: "127.0.0.1:8077",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load builds the configuration. An explicit path must exist; an empty
// path falls back to ConfigPathEnvVar and then DefaultConfigPaths, all
// optional.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	explicit := path != ""
	if !explicit {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if explicit || !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load config file %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransform maps COLLATZ_RUN_BATCH_SIZE to run.batch_size: strip the
// prefix, lowercase, and split section from key at the first underscore.
func envTransform(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return section
	}
	return section + "." + rest
}
