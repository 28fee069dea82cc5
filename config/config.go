package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config holds collector, scorer, and output configuration.
type Config struct {
	BaseURL          string        `koanf:"base_url"`
	Backend          string        `koanf:"backend"` // http or browser
	MaxPages         int           `koanf:"max_pages"`
	Delay            time.Duration `koanf:"delay"`
	RandomDelay      time.Duration `koanf:"random_delay"`
	Timeout          time.Duration `koanf:"timeout"`
	MaxRetries       int           `koanf:"max_retries"`
	RetryBackoff     time.Duration `koanf:"retry_backoff"`
	RetryBackoffMax  time.Duration `koanf:"retry_backoff_max"`
	DuplicatePolicy  string        `koanf:"duplicate_policy"` // previous or seen
	DedupeMaxSize    int           `koanf:"dedupe_max_size"`
	BreakerThreshold uint32        `koanf:"breaker_threshold"`
	BreakerTimeout   time.Duration `koanf:"breaker_timeout"`
	OutputDir        string        `koanf:"output_dir"`
	OutputFormat     string        `koanf:"output_format"` // csv, json, or dual
	BatchSize        int           `koanf:"batch_size"`
	BufferSize       int           `koanf:"buffer_size"`
	ScoreMode        string        `koanf:"score_mode"` // bonus or split
	UserAgent        string        `koanf:"user_agent"`
	Verbose          bool          `koanf:"verbose"`
	RespectRobotsTxt bool          `koanf:"respect_robots_txt"`
	MetricsAddr      string        `koanf:"metrics_addr"`
}

// DefaultConfig returns conservative defaults for backloggd.com.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:          "https://backloggd.com",
		Backend:          "http",
		MaxPages:         200,
		Delay:            250 * time.Millisecond,
		RandomDelay:      0,
		Timeout:          15 * time.Second,
		MaxRetries:       2,
		RetryBackoff:     500 * time.Millisecond,
		RetryBackoffMax:  5 * time.Second,
		DuplicatePolicy:  "previous",
		DedupeMaxSize:    1024,
		BreakerThreshold: 3,
		BreakerTimeout:   30 * time.Second,
		OutputDir:        "output",
		OutputFormat:     "csv",
		BatchSize:        64,
		BufferSize:       256,
		ScoreMode:        "bonus",
		UserAgent:        "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/117.0.0.0 Safari/537.36",
		Verbose:          false,
		RespectRobotsTxt: false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if c.Backend != "http" && c.Backend != "browser" {
		return fmt.Errorf("backend must be http or browser")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max pages must be positive")
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay cannot be negative")
	}
	if c.RandomDelay < 0 {
		return fmt.Errorf("random delay cannot be negative")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.DuplicatePolicy != "previous" && c.DuplicatePolicy != "seen" {
		return fmt.Errorf("duplicate policy must be previous or seen")
	}
	if c.DuplicatePolicy == "seen" && c.DedupeMaxSize <= 0 {
		return fmt.Errorf("dedupe max size must be positive for the seen policy")
	}
	if c.BreakerThreshold > 0 && int64(c.BreakerThreshold) > int64(c.MaxRetries)+1 {
		return fmt.Errorf("breaker threshold (%d) cannot exceed the attempts of one page (%d)", c.BreakerThreshold, c.MaxRetries+1)
	}
	if c.BreakerTimeout < 0 {
		return fmt.Errorf("breaker timeout cannot be negative")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output dir cannot be empty")
	}
	if c.OutputFormat != "csv" && c.OutputFormat != "json" && c.OutputFormat != "dual" {
		return fmt.Errorf("output format must be csv, json, or dual")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive")
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive")
	}
	if c.ScoreMode != "bonus" && c.ScoreMode != "split" {
		return fmt.Errorf("score mode must be bonus or split")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}
