package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dumbCodesOnly/SigV0.01/backtest"
	"github.com/dumbCodesOnly/SigV0.01/feed"
	"github.com/dumbCodesOnly/SigV0.01/indicators"
	"github.com/dumbCodesOnly/SigV0.01/risk"
	"github.com/dumbCodesOnly/SigV0.01/signals"
)

// Config represents the complete engine configuration
type Config struct {
	Signal     signals.Config    `json:"signal" yaml:"signal"`
	Risk       risk.Policy       `json:"risk" yaml:"risk"`
	Indicators indicators.Config `json:"indicators" yaml:"indicators"`
	Sentiment  SentimentConfig   `json:"sentiment" yaml:"sentiment"`
	Account    AccountConfig     `json:"account" yaml:"account"`
	Journal    JournalConfig     `json:"journal" yaml:"journal"`
	Live       LiveConfig        `json:"live" yaml:"live"`
	Log        LogConfig         `json:"log" yaml:"log"`
	Metrics    MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// SentimentConfig selects the sentiment provider. A non-empty File wins over
// the static score.
type SentimentConfig struct {
	File   string  `json:"file,omitempty" yaml:"file,omitempty"`
	Score  float64 `json:"score" yaml:"score"`
	MaxAge string  `json:"max_age,omitempty" yaml:"max_age,omitempty"` // e.g. "6h"
}

// ParseMaxAge converts MaxAge to a duration. Empty means readings never go stale.
func (s SentimentConfig) ParseMaxAge() (time.Duration, error) {
	if s.MaxAge == "" {
		return 0, nil
	}
	return time.ParseDuration(s.MaxAge)
}

// AccountConfig contains the notional account used for equity and sizing
type AccountConfig struct {
	backtest.Account `yaml:",inline"`
	MaxNotionalPct   float64 `json:"max_notional_pct,omitempty" yaml:"max_notional_pct,omitempty"`
}

// JournalConfig contains journaling parameters
type JournalConfig struct {
	Type       string `json:"type" yaml:"type"` // "none", "csv" or "sqlite"
	EventsFile string `json:"events_file,omitempty" yaml:"events_file,omitempty"`
	TradesFile string `json:"trades_file,omitempty" yaml:"trades_file,omitempty"`
	DBPath     string `json:"db_path,omitempty" yaml:"db_path,omitempty"`
}

// LiveConfig describes the streaming kline source.
type LiveConfig struct {
	URL      string   `json:"url" yaml:"url"`
	Symbols  []string `json:"symbols" yaml:"symbols"`
	Interval string   `json:"interval" yaml:"interval"`
}

type LogConfig struct {
	Level   string `json:"level" yaml:"level"`
	Console bool   `json:"console,omitempty" yaml:"console,omitempty"`
}

type MetricsConfig struct {
	Addr string `json:"addr,omitempty" yaml:"addr,omitempty"` // empty disables the endpoint
}

// LoadFromFile loads configuration from a file (JSON or YAML)
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Sections missing from the file keep their defaults.
	cfg := Default()

	// Try YAML first, fall back to JSON
	err = yaml.Unmarshal(data, cfg)
	if err != nil {
		err = json.Unmarshal(data, cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	return cfg, nil
}

// SaveToFile saves configuration to a file (format based on extension)
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Signal.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if err := c.Indicators.Validate(); err != nil {
		return err
	}

	if c.Sentiment.Score < -1 || c.Sentiment.Score > 1 {
		return fmt.Errorf("sentiment.score must be between -1 and 1")
	}
	if _, err := c.Sentiment.ParseMaxAge(); err != nil {
		return fmt.Errorf("sentiment.max_age: %w", err)
	}

	if c.Account.StartBalance <= 0 {
		return fmt.Errorf("account.start_balance must be positive")
	}
	if c.Account.RiskPct <= 0 || c.Account.RiskPct > 1 {
		return fmt.Errorf("account.risk_pct must be between 0 and 1")
	}
	if c.Account.MaxNotionalPct < 0 {
		return fmt.Errorf("account.max_notional_pct must be >= 0")
	}

	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.EventsFile == "" || c.Journal.TradesFile == "" {
			return fmt.Errorf("csv journal requires events_file and trades_file")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("sqlite journal requires db_path")
		}
	default:
		return fmt.Errorf("journal.type must be 'none', 'csv' or 'sqlite'")
	}

	if c.Live.Interval == "" {
		return fmt.Errorf("live.interval is required")
	}
	return nil
}

// Environment variables consulted by ApplyEnv.
const (
	EnvLogLevel    = "SIGBOT_LOG_LEVEL"
	EnvJournalDB   = "SIGBOT_JOURNAL_DB"
	EnvMetricsAddr = "SIGBOT_METRICS_ADDR"
	EnvSentiment   = "SIGBOT_SENTIMENT_FILE"
)

// ApplyEnv loads the given dotenv files, if present, and lets SIGBOT_*
// variables override the matching fields. Missing files are not an error.
func (c *Config) ApplyEnv(files ...string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}

	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv(EnvJournalDB); v != "" {
		c.Journal.Type = "sqlite"
		c.Journal.DBPath = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(EnvSentiment); v != "" {
		c.Sentiment.File = v
	}
	return nil
}

// DefaultPendingExpiryBars bounds how long an unfilled signal may hold its
// instrument. Without it a level that is never revisited blocks new signals.
const DefaultPendingExpiryBars = 24

// Default returns a default configuration
func Default() *Config {
	pol := risk.DefaultPolicy()
	pol.PendingExpiryBars = DefaultPendingExpiryBars

	return &Config{
		Signal:     signals.DefaultConfig(),
		Risk:       pol,
		Indicators: indicators.DefaultConfig(),
		Sentiment:  SentimentConfig{MaxAge: "24h"},
		Account:    AccountConfig{Account: backtest.DefaultAccount(), MaxNotionalPct: 1.0},
		Journal:    JournalConfig{Type: "none"},
		Live: LiveConfig{
			URL:      feed.DefaultBinanceURL,
			Symbols:  []string{"btcusdt"},
			Interval: "1h",
		},
		Log: LogConfig{Level: "info"},
	}
}
