package config

import (
	"fmt"
	"math/big"

	"github.com/rs/zerolog"
)

// Validate checks the whole configuration and returns the first problem
// found.
func (c *Config) Validate() error {
	if err := c.DB.validate(); err != nil {
		return fmt.Errorf("db: %w", err)
	}
	if err := c.Run.validate(); err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if err := c.Serve.validate(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}
	if err := c.Log.validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

func (c DBConfig) validate() error {
	if c.Path == "" {
		return fmt.Errorf("path must not be empty")
	}
	if c.BusyTimeout < 0 {
		return fmt.Errorf("busy_timeout must not be negative")
	}
	return nil
}

func (c RunConfig) validate() error {
	if c.Tests == 0 {
		return fmt.Errorf("tests must be positive")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("batch_size must not be negative")
	}
	if c.StepLimit == 0 {
		return fmt.Errorf("step_limit must be positive")
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	return nil
}

// Range parses the sampling bounds.
func (c RunConfig) Range() (min, max *big.Int, err error) {
	min, ok := new(big.Int).SetString(c.Min, 10)
	if !ok {
		return nil, nil, fmt.Errorf("min %q is not a decimal integer", c.Min)
	}
	max, ok = new(big.Int).SetString(c.Max, 10)
	if !ok {
		return nil, nil, fmt.Errorf("max %q is not a decimal integer", c.Max)
	}
	if min.Sign() <= 0 {
		return nil, nil, fmt.Errorf("min must be positive, got %s", min)
	}
	if max.Cmp(min) < 0 {
		return nil, nil, fmt.Errorf("max %s is below min %s", max, min)
	}
	return min, max, nil
}

func (c ServeConfig) validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr must not be empty")
	}
	return nil
}

func (c LogConfig) validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("level %q is not a log level", c.Level)
	}
	switch c.Format {
	case "", "auto", "json", "console":
		return nil
	default:
		return fmt.Errorf("format %q is not one of auto, json, console", c.Format)
	}
}
