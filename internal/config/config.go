// Package config handles configuration loading and management for Conclave.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the orchestration core.
type Config struct {
	Orchestration OrchestrationConfig `mapstructure:"orchestration"`
	ContextStore  ContextStoreConfig  `mapstructure:"context_store"`
	Runner        RunnerConfig        `mapstructure:"runner"`
	Learning      LearningConfig      `mapstructure:"learning"`
	Roster        RosterConfig        `mapstructure:"roster"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// OrchestrationConfig holds the orchestrator tuning knobs.
type OrchestrationConfig struct {
	// MaxAgents is the maximum number of agents selected per orchestration.
	MaxAgents int `mapstructure:"max_agents"`
	// Timeout is the shared batch timeout for one orchestration.
	Timeout time.Duration `mapstructure:"timeout"`
	// MaxConcurrentOrchestrations is the health-check concurrency ceiling.
	MaxConcurrentOrchestrations int `mapstructure:"max_concurrent_orchestrations"`
	// QualityThreshold is the minimum acceptable confidence in [0, 1].
	QualityThreshold float64 `mapstructure:"quality_threshold"`
	// ShutdownGrace is how long in-flight agents get to drain on shutdown.
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`
}

// ContextStoreConfig holds the shared context store settings.
type ContextStoreConfig struct {
	// CacheSize is the hard ceiling on stored context entries.
	CacheSize int `mapstructure:"cache_size"`
	// DefaultTTL is the expiry applied when callers don't specify one.
	// Zero means entries don't expire.
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	// SweepInterval is how often the background expiry sweep runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RunnerConfig holds agent execution backend settings.
type RunnerConfig struct {
	// Simulate forces the built-in simulated runner even when an API key is set.
	Simulate bool `mapstructure:"simulate"`
	// Anthropic holds direct-API and Bedrock settings.
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// Model is the model identifier passed to the API.
	Model string `mapstructure:"model"`
	// UseAWSBedrock routes requests through AWS Bedrock instead of the direct API.
	UseAWSBedrock bool `mapstructure:"use_aws_bedrock"`
	// AWSRegion is the Bedrock region (e.g. "us-west-2").
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is the optional AWS profile name.
	AWSProfile string `mapstructure:"aws_profile"`
}

// LearningConfig holds reliability-store persistence settings.
type LearningConfig struct {
	// DBPath is the sqlite file for reliability and expertise scores.
	// Empty disables persistence.
	DBPath string `mapstructure:"db_path"`
}

// RosterConfig holds agent roster settings.
type RosterConfig struct {
	// Path is an optional YAML file overriding the built-in agent roster.
	Path string `mapstructure:"path"`
	// Watch enables hot reload of the roster file's enabled flags.
	Watch bool `mapstructure:"watch"`
}

// LoggingConfig holds debug log settings.
type LoggingConfig struct {
	// DebugLog is the path for the orchestrator debug log. Empty disables it.
	DebugLog string `mapstructure:"debug_log"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (CONCLAVE_*, ANTHROPIC_API_KEY)
// 2. Project config (.conclave.yaml in current directory or parent)
// 3. User config (~/.config/conclave/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	userConfigDir := getUserConfigDir()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(userConfigDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	projectConfig := findProjectConfig()
	if projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.AutomaticEnv()
	v.SetEnvPrefix("CONCLAVE")

	v.BindEnv("runner.anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Runner.Anthropic.APIKey = expandEnv(cfg.Runner.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Runner.Anthropic.APIKey = expandEnv(cfg.Runner.Anthropic.APIKey)

	return cfg, nil
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// setDefaults configures default values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("orchestration.max_agents", 3)
	v.SetDefault("orchestration.timeout", "30s")
	v.SetDefault("orchestration.max_concurrent_orchestrations", 10)
	v.SetDefault("orchestration.quality_threshold", 0.8)
	v.SetDefault("orchestration.shutdown_grace", "5s")

	v.SetDefault("context_store.cache_size", 1000)
	v.SetDefault("context_store.default_ttl", "0s")
	v.SetDefault("context_store.sweep_interval", "1h")

	v.SetDefault("runner.simulate", false)
	v.SetDefault("runner.anthropic.api_key", "")
	v.SetDefault("runner.anthropic.model", "")
	v.SetDefault("runner.anthropic.use_aws_bedrock", false)

	v.SetDefault("learning.db_path", "")
	v.SetDefault("roster.path", "")
	v.SetDefault("roster.watch", false)
	v.SetDefault("logging.debug_log", "")
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Orchestration: OrchestrationConfig{
			MaxAgents:                   3,
			Timeout:                     30 * time.Second,
			MaxConcurrentOrchestrations: 10,
			QualityThreshold:            0.8,
			ShutdownGrace:               5 * time.Second,
		},
		ContextStore: ContextStoreConfig{
			CacheSize:     1000,
			SweepInterval: time.Hour,
		},
	}
}

// getUserConfigDir returns the XDG config directory for Conclave.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "conclave")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "conclave")
	}
	return filepath.Join(home, ".config", "conclave")
}

// findProjectConfig searches for .conclave.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".conclave.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// expandEnv expands ${VAR} references in a string.
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}
