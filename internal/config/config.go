// Package config loads the daemon's configuration once at startup from
// a config file plus environment variable overrides. There is no
// hot-reload: a running daemon always reflects the configuration it
// was started with, and picking up a change requires a restart, which
// the supervisor/orchestrator already handles gracefully.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the daemon's complete runtime configuration.
type Config struct {
	ConfigDir     string              `mapstructure:"config_dir"`
	WorkspaceDir  string              `mapstructure:"workspace_dir"`
	Gateway       GatewayConfig       `mapstructure:"gateway"`
	Reliability   ReliabilityConfig   `mapstructure:"reliability"`
	Pairing       PairingConfig       `mapstructure:"pairing"`
	SSRF          SSRFConfig          `mapstructure:"ssrf"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Lock          LockConfig          `mapstructure:"lock"`
	Log           LogConfig           `mapstructure:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Channels      ChannelsConfig      `mapstructure:"channels"`
	Heartbeat     HeartbeatConfig     `mapstructure:"heartbeat"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Tunnel        TunnelConfig        `mapstructure:"tunnel"`
}

// GatewayConfig controls the daemon's HTTP gateway.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ReliabilityConfig controls supervisor restart backoff.
type ReliabilityConfig struct {
	ChannelInitialBackoffSecs uint64 `mapstructure:"channel_initial_backoff_secs"`
	ChannelMaxBackoffSecs     uint64 `mapstructure:"channel_max_backoff_secs"`
}

// InitialBackoff returns the configured initial backoff, coerced to at
// least one second.
func (r ReliabilityConfig) InitialBackoff() time.Duration {
	secs := r.ChannelInitialBackoffSecs
	if secs < 1 {
		secs = 1
	}
	return time.Duration(secs) * time.Second
}

// MaxBackoff returns the configured max backoff, coerced to at least
// InitialBackoff().
func (r ReliabilityConfig) MaxBackoff() time.Duration {
	initial := r.InitialBackoff()
	secs := r.ChannelMaxBackoffSecs
	max := time.Duration(secs) * time.Second
	if max < initial {
		return initial
	}
	return max
}

// PairingConfig controls the gateway's first-connect pairing flow.
type PairingConfig struct {
	RequirePairing bool     `mapstructure:"require_pairing"`
	PairedTokens   []string `mapstructure:"paired_tokens"`
}

// SSRFConfig lists hosts that providers with a local base URL are
// expected to reach. The ssrf package does not read this list:
// ValidateURL and NewClient apply no allowlist, so such providers use a
// plain HTTP client instead of the SSRF-guarded one.
type SSRFConfig struct {
	AllowPrivate []string `mapstructure:"allow_private"`
}

// CacheConfig holds retry settings for the reliable provider caller:
// retries per provider and the base backoff between them. The response
// cache TTL is fixed in the provider package and is not configurable
// here, and no package in this repository reads these fields.
type CacheConfig struct {
	MaxRetries  int           `mapstructure:"max_retries"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
}

// LockConfig controls the single-instance lock file.
type LockConfig struct {
	FileName string `mapstructure:"file_name"`
}

// LogConfig holds logging-related configuration.
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// ChannelsConfig is a presence check over a fixed, enumerated set of
// supported channel adapters. The daemon never inspects the values
// beyond non-emptiness: deciding whether to run a channel supervisor
// is purely "is at least one of these configured".
type ChannelsConfig struct {
	Telegram string `mapstructure:"telegram"`
	Discord  string `mapstructure:"discord"`
	Slack    string `mapstructure:"slack"`
	IMessage string `mapstructure:"imessage"`
	Matrix   string `mapstructure:"matrix"`
}

// HasAny reports whether any channel adapter is configured.
func (c ChannelsConfig) HasAny() bool {
	return c.Telegram != "" || c.Discord != "" || c.Slack != "" || c.IMessage != "" || c.Matrix != ""
}

// HeartbeatConfig controls the optional periodic heartbeat worker.
type HeartbeatConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	IntervalMinutes int  `mapstructure:"interval_minutes"`
}

// ObservabilityConfig selects the observability sink backend.
type ObservabilityConfig struct {
	Backend string `mapstructure:"backend"`
}

// TunnelConfig selects the tunnel provider exposing the gateway
// externally. Only "none" ships a concrete implementation.
type TunnelConfig struct {
	Provider string `mapstructure:"provider"`
}

// Load reads configuration from configPath (if non-empty and present)
// and environment variables, applying defaults for anything neither
// source sets.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("config_dir", ".")
	v.SetDefault("workspace_dir", ".")

	v.SetDefault("gateway.host", "127.0.0.1")
	v.SetDefault("gateway.port", 8077)

	v.SetDefault("reliability.channel_initial_backoff_secs", 1)
	v.SetDefault("reliability.channel_max_backoff_secs", 60)

	v.SetDefault("pairing.require_pairing", true)
	v.SetDefault("pairing.paired_tokens", []string{})

	v.SetDefault("ssrf.allow_private", []string{})

	v.SetDefault("cache.max_retries", 2)
	v.SetDefault("cache.base_backoff", "500ms")

	v.SetDefault("lock.file_name", "daemon.lock")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.filename", "")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("heartbeat.enabled", false)
	v.SetDefault("heartbeat.interval_minutes", 5)

	v.SetDefault("observability.backend", "log")

	v.SetDefault("tunnel.provider", "none")
}

// Validate applies the handful of range and presence checks this
// config needs; it reports the first failure and changes no field (the
// backoff clamps live in InitialBackoff and MaxBackoff). There is no
// struct-tag validation library in
// play here (go-playground/validator is not part of this dependency
// surface): every check below is a single comparison, not worth
// pulling in a validation framework for.
func (c *Config) Validate() error {
	if c.Gateway.Port <= 0 || c.Gateway.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", c.Gateway.Port)
	}
	if c.Gateway.Host == "" {
		return fmt.Errorf("gateway host cannot be empty")
	}
	if c.Log.Level == "" {
		return fmt.Errorf("log level cannot be empty")
	}
	if c.Lock.FileName == "" {
		return fmt.Errorf("lock file name cannot be empty")
	}
	return nil
}

// LockPath returns the full path to the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.ConfigDir, c.Lock.FileName)
}

// StateFilePath returns the full path to the daemon's state file.
func (c *Config) StateFilePath() string {
	return filepath.Join(c.ConfigDir, "daemon_state.json")
}
