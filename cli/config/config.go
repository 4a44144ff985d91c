// Package config loads the stickersync YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/halfmoth/stickersync/hub"
	"github.com/halfmoth/stickersync/proxy"
	"github.com/halfmoth/stickersync/retry"
	"github.com/halfmoth/stickersync/scheduler"
	"github.com/halfmoth/stickersync/source"
)

// Source kinds selectable via source.kind.
const (
	// KindGitHub reads the hub from raw.githubusercontent.com.
	KindGitHub = "github"
	// KindURL reads the hub through a custom URL template.
	KindURL = "url"
	// KindS3 reads the hub from an S3-compatible bucket.
	KindS3 = "s3"
)

// DefaultAutoSyncInterval is the default daemon re-sync interval.
const DefaultAutoSyncInterval = 30 * time.Minute

// DefaultJournalKeep bounds how many sync records history retains.
const DefaultJournalKeep = 500

// DefaultLogLevel applies when the config file does not set log.level.
const DefaultLogLevel = "info"

// Config represents a stickersync config file. Absent keys keep the
// built-in defaults from Default.
type Config struct {
	DataDir     string         `yaml:"data_dir"`
	Proxy       ProxyConfig    `yaml:"proxy"`
	Source      SourceConfig   `yaml:"source"`
	Retry       RetryConfig    `yaml:"retry"`
	Concurrency int            `yaml:"concurrency"`
	RunTimeout  Duration       `yaml:"run_timeout"`
	AutoSync    AutoSyncConfig `yaml:"auto_sync"`
	Journal     JournalConfig  `yaml:"journal"`
	Notify      NotifyConfig   `yaml:"notify"`
	Log         LogConfig      `yaml:"log"`
}

// ProxyConfig holds the upstream proxy pool for hub requests.
// An empty URL list falls back to the environment proxy settings.
type ProxyConfig struct {
	URLs     []string `yaml:"urls"`
	Strategy string   `yaml:"strategy"`
}

// SourceConfig describes where the pack hub lives. Kind selects the
// backend; the remaining fields apply per kind.
type SourceConfig struct {
	Kind        string `yaml:"kind"`
	Owner       string `yaml:"owner"`
	Repo        string `yaml:"repo"`
	Ref         string `yaml:"ref"`
	URLTemplate string `yaml:"url_template"`
	Bucket      string `yaml:"bucket"`
	Prefix      string `yaml:"prefix"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
	Manifest    string `yaml:"manifest"`
}

// RetryConfig holds the per-request retry budget.
type RetryConfig struct {
	Attempts          int      `yaml:"attempts"`
	PerRequestTimeout Duration `yaml:"per_request_timeout"`
	RateLimitCooldown Duration `yaml:"rate_limit_cooldown"`
}

// AutoSyncConfig controls unattended syncs in daemon mode. Enabled
// gates the startup sync; a positive Interval adds periodic re-syncs.
type AutoSyncConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Forced   bool     `yaml:"forced"`
	Interval Duration `yaml:"interval"`
}

// JournalConfig controls sync history retention. Enabled defaults to
// true when omitted; Keep zero retains everything.
type JournalConfig struct {
	Enabled *bool `yaml:"enabled"`
	Keep    int   `yaml:"keep"`
}

// NotifyConfig holds the optional sync-completed notifiers.
type NotifyConfig struct {
	Webhook *WebhookConfig `yaml:"webhook,omitempty"`
	Redis   *RedisConfig   `yaml:"redis,omitempty"`
}

// WebhookConfig configures the HTTP POST notifier.
type WebhookConfig struct {
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers,omitempty"`
	Timeout Duration          `yaml:"timeout,omitempty"`
	Retries *int              `yaml:"retries,omitempty"`
}

// RedisConfig configures the Redis pub/sub notifier.
type RedisConfig struct {
	URL     string   `yaml:"url"`
	Channel string   `yaml:"channel,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
	Retries *int     `yaml:"retries,omitempty"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Duration wraps time.Duration for YAML string parsing (e.g. "10s", "5m").
type Duration struct {
	time.Duration
}

// UnmarshalYAML parses a duration string like "10s" or "5m30s".
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// Default returns the built-in configuration: the public sticker hub on
// GitHub, the stock retry budget, and journaling enabled.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Proxy:   ProxyConfig{Strategy: string(proxy.StrategyRoundRobin)},
		Source: SourceConfig{
			Kind:     KindGitHub,
			Owner:    hub.DefaultOwner,
			Repo:     hub.DefaultRepo,
			Ref:      hub.DefaultRef,
			Manifest: hub.ManifestPath,
		},
		Retry: RetryConfig{
			Attempts:          retry.DefaultAttempts,
			PerRequestTimeout: Duration{retry.DefaultPerAttemptTimeout},
			RateLimitCooldown: Duration{retry.DefaultRateLimitCooldown},
		},
		Concurrency: scheduler.DefaultParallel,
		AutoSync:    AutoSyncConfig{Interval: Duration{DefaultAutoSyncInterval}},
		Journal:     JournalConfig{Keep: DefaultJournalKeep},
		Log:         LogConfig{Level: DefaultLogLevel},
	}
}

// DefaultDataDir returns the conventional pack store location,
// ~/.local/share/stickersync. When the home directory cannot be
// resolved the store lands in the working directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "stickersync-data"
	}
	return filepath.Join(home, ".local", "share", "stickersync")
}

// Validate checks the configuration for values that cannot work. It
// runs after defaults are merged, so an empty value here means the
// file explicitly cleared it.
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir is required")
	}

	switch c.Source.Kind {
	case KindGitHub:
		if c.Source.Owner == "" || c.Source.Repo == "" {
			return errors.New("source: github kind requires owner and repo")
		}
	case KindURL:
		if c.Source.URLTemplate == "" {
			return errors.New("source: url kind requires url_template")
		}
	case KindS3:
		if c.Source.Bucket == "" {
			return errors.New("source: s3 kind requires bucket")
		}
	default:
		return fmt.Errorf("source: unknown kind %q", c.Source.Kind)
	}
	// Template errors must surface at startup, not mid-sync.
	if c.Source.Kind != KindS3 {
		if _, err := c.Template(); err != nil {
			return fmt.Errorf("source: %w", err)
		}
	}
	if c.Source.Manifest == "" {
		return errors.New("source: manifest path is required")
	}

	if len(c.Proxy.URLs) > 0 {
		if _, err := proxy.NewSelector(proxy.Strategy(c.Proxy.Strategy), c.Proxy.URLs); err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}

	if c.Retry.Attempts < 1 {
		return errors.New("retry: attempts must be at least 1")
	}
	if c.Retry.PerRequestTimeout.Duration < 0 {
		return errors.New("retry: per_request_timeout must not be negative")
	}
	if c.Retry.RateLimitCooldown.Duration < 0 {
		return errors.New("retry: rate_limit_cooldown must not be negative")
	}
	if c.Concurrency < 1 {
		return errors.New("concurrency must be at least 1")
	}
	if c.RunTimeout.Duration < 0 {
		return errors.New("run_timeout must not be negative")
	}
	if c.AutoSync.Interval.Duration < 0 {
		return errors.New("auto_sync: interval must not be negative")
	}
	if c.Journal.Keep < 0 {
		return errors.New("journal: keep must not be negative")
	}

	if w := c.Notify.Webhook; w != nil {
		if w.URL == "" {
			return errors.New("notify: webhook requires a url")
		}
		if w.Retries != nil && *w.Retries < 0 {
			return errors.New("notify: webhook retries must not be negative")
		}
	}
	if r := c.Notify.Redis; r != nil {
		if r.URL == "" {
			return errors.New("notify: redis requires a url")
		}
		if r.Retries != nil && *r.Retries < 0 {
			return errors.New("notify: redis retries must not be negative")
		}
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log: unknown level %q", c.Log.Level)
	}

	return nil
}

// RetryPolicy maps the retry block onto the engine retry config.
func (c *Config) RetryPolicy() retry.Config {
	return retry.Config{
		Attempts:          c.Retry.Attempts,
		PerAttemptTimeout: c.Retry.PerRequestTimeout.Duration,
		RateLimitCooldown: c.Retry.RateLimitCooldown.Duration,
	}
}

// ProxySelector builds the proxy selector, or nil when no proxies are
// configured so transports fall back to the environment settings.
func (c *Config) ProxySelector() (*proxy.Selector, error) {
	if len(c.Proxy.URLs) == 0 {
		return nil, nil
	}
	return proxy.NewSelector(proxy.Strategy(c.Proxy.Strategy), c.Proxy.URLs)
}

// Template returns the parsed URL template for HTTP-backed sources.
// The github kind uses the stock template unless url_template overrides it.
func (c *Config) Template() (*source.Template, error) {
	raw := c.Source.URLTemplate
	if raw == "" {
		raw = source.DefaultTemplate
	}
	return source.ParseTemplate(raw)
}

// SourceVars returns the hub substitution values for URL templates.
func (c *Config) SourceVars() source.Vars {
	return source.Vars{Owner: c.Source.Owner, Repo: c.Source.Repo, Ref: c.Source.Ref}
}

// JournalEnabled reports whether sync history should be recorded.
// Omitting journal.enabled means yes.
func (c *Config) JournalEnabled() bool {
	return c.Journal.Enabled == nil || *c.Journal.Enabled
}
