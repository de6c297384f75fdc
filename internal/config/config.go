// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Fetch      FetchConfig      `mapstructure:"fetch"`
	Render     RenderConfig     `mapstructure:"render"`
	Review     ReviewConfig     `mapstructure:"review"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Batch      BatchConfig      `mapstructure:"batch"`
	Escalation EscalationConfig `mapstructure:"escalation"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port              int    `mapstructure:"port"`
	APIKey            string `mapstructure:"api_key"`
	RequestTimeoutSec int    `mapstructure:"request_timeout_seconds"`
}

// FetchConfig configures the static fetcher and page-set assembler.
type FetchConfig struct {
	TimeoutSeconds     int `mapstructure:"timeout_seconds"`
	MaxRetries         int `mapstructure:"max_retries"`
	MaxPages           int `mapstructure:"max_pages"`
	SubpageConcurrency int `mapstructure:"subpage_concurrency"`
	PageSetBudgetSec   int `mapstructure:"pageset_budget_seconds"`
}

// RenderConfig configures the headless rendering subsystem.
type RenderConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	MaxParallel   int    `mapstructure:"max_parallel"`
	NavTimeoutMs  int    `mapstructure:"nav_timeout_ms"`
	CacheTTLHours int    `mapstructure:"cache_ttl_hours"`
	UserAgent     string `mapstructure:"user_agent"`
}

// ReviewConfig configures the LLM reviewer collaborator.
type ReviewConfig struct {
	Endpoint       string  `mapstructure:"endpoint"`
	APIKey         string  `mapstructure:"api_key"`
	Model          string  `mapstructure:"model"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// CacheConfig controls the persistent score cache.
type CacheConfig struct {
	MaxAgeHours int    `mapstructure:"max_age_hours"`
	DSN         string `mapstructure:"dsn"`
	Table       string `mapstructure:"table"`
	MaxConns    int32  `mapstructure:"max_conns"`
}

// BatchConfig governs the outer lead-scoring pool.
type BatchConfig struct {
	Concurrency       int `mapstructure:"concurrency"`
	PerLeadTimeoutSec int `mapstructure:"per_lead_timeout_seconds"`
	TotalTimeoutSec   int `mapstructure:"total_timeout_seconds"`
}

// EscalationConfig holds the hand-tuned thresholds for the second render
// pass. Kept configurable for calibration against real data.
type EscalationConfig struct {
	ContactScoreBelow int `mapstructure:"contact_score_below"`
	RichContentWords  int `mapstructure:"rich_content_words"`
	ThinContactWords  int `mapstructure:"thin_contact_words"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEADBLITZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("fetch.timeout_seconds", 15)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.max_pages", 3)
	v.SetDefault("fetch.subpage_concurrency", 4)
	v.SetDefault("fetch.pageset_budget_seconds", 45)
	v.SetDefault("render.enabled", true)
	v.SetDefault("render.max_parallel", 2)
	v.SetDefault("render.nav_timeout_ms", 8000)
	v.SetDefault("render.cache_ttl_hours", 24)
	v.SetDefault("review.endpoint", "https://api.openai.com/v1/chat/completions")
	v.SetDefault("review.model", "gpt-4o")
	v.SetDefault("review.temperature", 0.3)
	v.SetDefault("review.timeout_seconds", 45)
	v.SetDefault("cache.max_age_hours", 24)
	v.SetDefault("cache.table", "score_cache")
	v.SetDefault("batch.concurrency", 10)
	v.SetDefault("batch.per_lead_timeout_seconds", 30)
	v.SetDefault("batch.total_timeout_seconds", 300)
	v.SetDefault("escalation.contact_score_below", 3)
	v.SetDefault("escalation.rich_content_words", 200)
	v.SetDefault("escalation.thin_contact_words", 100)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Fetch.MaxPages <= 0 {
		return fmt.Errorf("fetch.max_pages must be > 0")
	}
	if c.Render.Enabled && c.Render.MaxParallel <= 0 {
		return fmt.Errorf("render.max_parallel must be > 0 when rendering is enabled")
	}
	if c.Batch.Concurrency <= 0 {
		return fmt.Errorf("batch.concurrency must be > 0")
	}
	if c.Batch.PerLeadTimeoutSec <= 0 || c.Batch.TotalTimeoutSec <= 0 {
		return fmt.Errorf("batch timeouts must be > 0")
	}
	return nil
}

// FetchTimeout returns the per-request fetch timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// PageSetBudget returns the aggregate deadline for one page-set assembly.
func (c Config) PageSetBudget() time.Duration {
	return time.Duration(c.Fetch.PageSetBudgetSec) * time.Second
}

// NavTimeout returns the hard per-render navigation budget.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Render.NavTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the outer HTTP request deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSec) * time.Second
}

// ScoreMaxAge returns the freshness window for cached scores.
func (c Config) ScoreMaxAge() time.Duration {
	return time.Duration(c.Cache.MaxAgeHours) * time.Hour
}
