package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete quorum configuration
type Config struct {
	Agents     []AgentConfig              `mapstructure:"agents"`
	Consensus  ConsensusConfig            `mapstructure:"consensus"`
	RateLimits map[string]RateLimitConfig `mapstructure:"rate_limits"`
	Logging    LoggingConfig              `mapstructure:"logging"`
	Store      StoreConfig                `mapstructure:"store"`
	TUI        TUIConfig                  `mapstructure:"tui"`
}

// AgentConfig declares one agent participating in rounds
type AgentConfig struct {
	// ID is the agent's stable identifier, unique across the agent set
	ID string `mapstructure:"id"`
	// ResourceKey names the rate-limit budget the agent draws from,
	// typically "<provider>/<model>". Agents sharing a key share the quota.
	// Empty means unlimited.
	ResourceKey string `mapstructure:"resource_key"`
}

// ConsensusConfig controls round termination and the debate protocol
type ConsensusConfig struct {
	// Threshold is the vote weight that ends the round early.
	// Values in (0, 1] are a fraction of the agent set; values above 1 are
	// an absolute vote count; 0 waits for every votable agent to vote.
	Threshold float64 `mapstructure:"threshold"`
	// MaxDurationSeconds is the wall-clock deadline for a round (default: 600)
	MaxDurationSeconds int `mapstructure:"max_duration_seconds"`
	// MaxDebateRounds caps restart cascades before resolution is forced
	// (default: 8, -1 = unlimited)
	MaxDebateRounds int `mapstructure:"max_debate_rounds"`
	// RetryBudget is the number of failed invocations tolerated per agent
	// (default: 2, -1 = no retries)
	RetryBudget int `mapstructure:"retry_budget"`
	// PresentationTimeoutSeconds bounds the final presentation invocation
	// (default: 120)
	PresentationTimeoutSeconds int `mapstructure:"presentation_timeout_seconds"`
}

// MaxDuration returns the round deadline as a time.Duration
func (c *ConsensusConfig) MaxDuration() time.Duration {
	return time.Duration(c.MaxDurationSeconds) * time.Second
}

// PresentationTimeout returns the presentation bound as a time.Duration
func (c *ConsensusConfig) PresentationTimeout() time.Duration {
	return time.Duration(c.PresentationTimeoutSeconds) * time.Second
}

// RateLimitConfig is a sliding-window budget for one resource key
type RateLimitConfig struct {
	// MaxRequests is the number of starts admitted per window
	MaxRequests int `mapstructure:"max_requests"`
	// WindowSeconds is the window length in seconds
	WindowSeconds int `mapstructure:"window_seconds"`
}

// Window returns the window length as a time.Duration
func (r RateLimitConfig) Window() time.Duration {
	return time.Duration(r.WindowSeconds) * time.Second
}

// LoggingConfig controls structured log output
type LoggingConfig struct {
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// Dir is the directory for quorum.log; empty logs to stderr
	Dir string `mapstructure:"dir"`
}

// StoreConfig controls the persistent audit log
type StoreConfig struct {
	// Path is the sqlite database file; empty disables persistence
	Path string `mapstructure:"path"`
	// MaxContentChars truncates persisted content passthrough events
	// (default: 2000, 0 = drop content events entirely)
	MaxContentChars int `mapstructure:"max_content_chars"`
}

// TUIConfig controls the watch/replay viewer
type TUIConfig struct {
	// Theme is the color theme: "default" or "mono" (default: "default")
	Theme string `mapstructure:"theme"`
	// TimelineLimit is the maximum number of timeline rows kept in memory
	TimelineLimit int `mapstructure:"timeline_limit"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Agents:     []AgentConfig{},
		RateLimits: map[string]RateLimitConfig{},
		Consensus: ConsensusConfig{
			Threshold:                  0,
			MaxDurationSeconds:         600,
			MaxDebateRounds:            8,
			RetryBudget:                2,
			PresentationTimeoutSeconds: 120,
		},
		Logging: LoggingConfig{
			Level: "info",
			Dir:   "",
		},
		Store: StoreConfig{
			Path:            "",
			MaxContentChars: 2000,
		},
		TUI: TUIConfig{
			Theme:         "default",
			TimelineLimit: 5000,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("consensus.threshold", defaults.Consensus.Threshold)
	viper.SetDefault("consensus.max_duration_seconds", defaults.Consensus.MaxDurationSeconds)
	viper.SetDefault("consensus.max_debate_rounds", defaults.Consensus.MaxDebateRounds)
	viper.SetDefault("consensus.retry_budget", defaults.Consensus.RetryBudget)
	viper.SetDefault("consensus.presentation_timeout_seconds", defaults.Consensus.PresentationTimeoutSeconds)

	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.dir", defaults.Logging.Dir)

	viper.SetDefault("store.path", defaults.Store.Path)
	viper.SetDefault("store.max_content_chars", defaults.Store.MaxContentChars)

	viper.SetDefault("tui.theme", defaults.TUI.Theme)
	viper.SetDefault("tui.timeline_limit", defaults.TUI.TimelineLimit)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "quorum")
	}
	// Fall back to ~/.config/quorum
	home, err := os.UserHomeDir()
	if err != nil {
		return ".quorum"
	}
	return filepath.Join(home, ".config", "quorum")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DefaultStorePath returns the sqlite path used when store.path is unset but
// persistence is requested on the command line.
func DefaultStorePath() string {
	return filepath.Join(ConfigDir(), "rounds.db")
}
