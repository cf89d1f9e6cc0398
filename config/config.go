package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Engine processing modes.
const (
	ModeParallel   = "parallel"
	ModeSequential = "sequential"
)

// Retry strategies.
const (
	StrategyAlternating = "alternating"
	StrategyEngineOnly  = "engine_only"
	StrategyDDGSOnly    = "ddgs_only"
)

// MaxWorkers is the hard cap on the single-source fetch pool.
const MaxWorkers = 16

// Config holds acquisition configuration.
type Config struct {
	Engines          []string
	Mode             string // parallel or sequential
	Strategy         string // alternating, engine_only, or ddgs_only
	MaxRetries       int
	RetryBackoff     time.Duration
	Workers          int // single-source fetch pool width
	VariationWorkers int // per-engine variation sub-pool width (1 = sequential)
	FetchTimeout     time.Duration
	EngineTimeout    time.Duration
	VariationTimeout time.Duration
	RateLimit        int // admissions per window, per engine
	RateWindow       time.Duration
	ItemRetries      int
	ItemBackoff      time.Duration
	MinImageBytes    int64
	MaxImageBytes    int64
	OutputDir        string
	UserAgent        string
	MetricsAddr      string
	Verbose          bool
}

// DefaultConfig returns conservative defaults for the supported engines.
func DefaultConfig() *Config {
	return &Config{
		Engines:          []string{"google", "bing", "baidu"},
		Mode:             ModeParallel,
		Strategy:         StrategyAlternating,
		MaxRetries:       3,
		RetryBackoff:     2 * time.Second,
		Workers:          4,
		VariationWorkers: 3,
		FetchTimeout:     20 * time.Second,
		EngineTimeout:    5 * time.Minute,
		VariationTimeout: 2 * time.Minute,
		RateLimit:        5,
		RateWindow:       time.Second,
		ItemRetries:      3,
		ItemBackoff:      500 * time.Millisecond,
		MinImageBytes:    1 << 10,
		MaxImageBytes:    20 << 20,
		OutputDir:        "output/images",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		MetricsAddr:      "",
		Verbose:          false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if len(c.Engines) == 0 {
		return fmt.Errorf("at least one engine must be configured")
	}
	if c.Mode != ModeParallel && c.Mode != ModeSequential {
		return fmt.Errorf("mode must be %s or %s", ModeParallel, ModeSequential)
	}
	switch c.Strategy {
	case StrategyAlternating, StrategyEngineOnly, StrategyDDGSOnly:
	default:
		return fmt.Errorf("strategy must be %s, %s, or %s", StrategyAlternating, StrategyEngineOnly, StrategyDDGSOnly)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be positive")
	}
	if c.Workers > MaxWorkers {
		return fmt.Errorf("workers cannot exceed %d", MaxWorkers)
	}
	if c.VariationWorkers <= 0 {
		return fmt.Errorf("variation workers must be positive")
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("fetch timeout must be positive")
	}
	if c.FetchTimeout > time.Minute {
		return fmt.Errorf("fetch timeout cannot exceed %s", time.Minute)
	}
	if c.EngineTimeout <= 0 {
		return fmt.Errorf("engine timeout must be positive")
	}
	if c.VariationTimeout <= 0 {
		return fmt.Errorf("variation timeout must be positive")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate limit must be positive")
	}
	if c.RateWindow <= 0 {
		return fmt.Errorf("rate window must be positive")
	}
	if c.ItemRetries < 0 {
		return fmt.Errorf("item retries cannot be negative")
	}
	if c.ItemBackoff < 0 {
		return fmt.Errorf("item backoff cannot be negative")
	}
	if c.MinImageBytes < 0 {
		return fmt.Errorf("min image bytes cannot be negative")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("max image bytes must be positive")
	}
	if c.MinImageBytes >= c.MaxImageBytes {
		return fmt.Errorf("min image bytes (%d) cannot exceed max image bytes (%d)", c.MinImageBytes, c.MaxImageBytes)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}
	return nil
}

// EnvInt reads an integer environment variable. The second return reports
// whether the variable was set.
func EnvInt(name string) (int, bool, error) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("parse %s: %w", name, err)
	}
	return value, true, nil
}

// EnvString reads a string environment variable.
func EnvString(name string) (string, bool) {
	raw, ok := os.LookupEnv(name)
	if !ok || raw == "" {
		return "", false
	}
	return raw, true
}
