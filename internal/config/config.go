// Package config handles configuration loading and management for the router.
// It supports XDG config paths, project-level overrides, and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/ShayCichocki/intentrouter/internal/classify"
	"github.com/ShayCichocki/intentrouter/internal/lexicon"
)

const (
	appName           = "intentrouter"
	projectConfigName = ".intentrouter.yaml"
	envPrefix         = "INTENTROUTER"
)

// Cache backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds all configuration for the router.
type Config struct {
	Anthropic  AnthropicConfig          `mapstructure:"anthropic"`
	Classifier classify.Scoring         `mapstructure:"classifier"`
	Gate       classify.GateConfig      `mapstructure:"gate"`
	Escalation classify.EscalatorConfig `mapstructure:"escalation"`
	Lexicon    lexicon.Lexicon          `mapstructure:"lexicon"`
	Cache      CacheConfig              `mapstructure:"cache"`
	Scheduler  SchedulerConfig          `mapstructure:"scheduler"`
	Catalog    CatalogConfig            `mapstructure:"catalog"`
	History    HistoryConfig            `mapstructure:"history"`
	Logging    LoggingConfig            `mapstructure:"logging"`
}

// AnthropicConfig holds Anthropic API settings used by the deep classifier
// and the subtask executor.
type AnthropicConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxTokens  int    `mapstructure:"max_tokens"`
	UseBedrock bool   `mapstructure:"use_bedrock"`
	AWSRegion  string `mapstructure:"aws_region"`
	AWSProfile string `mapstructure:"aws_profile"`
}

// CacheConfig holds intent cache settings.
type CacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Backend  string        `mapstructure:"backend"`
	Capacity int           `mapstructure:"capacity"`
	TTL      time.Duration `mapstructure:"ttl"`
	// Path overrides the SQLite database; empty uses the project database.
	Path      string `mapstructure:"path"`
	RedisAddr string `mapstructure:"redis_addr"`
	RedisKey  string `mapstructure:"redis_key"`
}

// SchedulerConfig holds worker pool settings.
type SchedulerConfig struct {
	Workers     int           `mapstructure:"workers"`
	TaskTimeout time.Duration `mapstructure:"task_timeout"`
}

// CatalogConfig holds registry catalog locations.
type CatalogConfig struct {
	UserDir    string `mapstructure:"user_dir"`
	ProjectDir string `mapstructure:"project_dir"`
	Watch      bool   `mapstructure:"watch"`
}

// HistoryConfig holds run history settings.
type HistoryConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Retention time.Duration `mapstructure:"retention"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	// File is the log file path; empty disables file logging.
	File string `mapstructure:"file"`
}

// Load loads configuration from XDG paths, project overrides, and environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY, INTENTROUTER_<SECTION>_<KEY>)
// 2. Project config (.intentrouter.yaml in current directory or parent)
// 3. User config (~/.config/intentrouter/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Load user config from XDG path
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	// Load project config if present
	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			// Merge project config (takes precedence)
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	bindEnv(v)
	return unmarshal(v)
}

// LoadFromPath loads configuration from a specific path (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	bindEnv(v)
	return unmarshal(v)
}

func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The conventional SDK variable wins over the prefixed one.
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY", envPrefix+"_ANTHROPIC_API_KEY")
}

func unmarshal(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references
	cfg.Anthropic.APIKey = expandEnv(cfg.Anthropic.APIKey)
	cfg.Cache.Path = expandPath(cfg.Cache.Path)
	cfg.Catalog.UserDir = expandPath(cfg.Catalog.UserDir)
	cfg.Catalog.ProjectDir = expandPath(cfg.Catalog.ProjectDir)
	cfg.Logging.File = expandPath(cfg.Logging.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case BackendSQLite, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("invalid cache.backend %q: expected sqlite, redis or memory", c.Cache.Backend)
	}
	if c.Cache.Backend == BackendRedis && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required for the redis backend")
	}
	if c.Scheduler.Workers < 1 {
		return fmt.Errorf("scheduler.workers must be at least 1, got %d", c.Scheduler.Workers)
	}
	if c.Gate.ConfidenceThreshold < 0 || c.Gate.ConfidenceThreshold > 1 {
		return fmt.Errorf("gate.confidence_threshold must be within [0, 1], got %v", c.Gate.ConfidenceThreshold)
	}
	return nil
}

// Save writes the configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return SaveTo(cfg, filepath.Join(userConfigDir, "config.yaml"))
}

// SaveTo writes the configuration to path.
func SaveTo(cfg *Config, path string) error {
	v := viper.New()
	v.SetConfigFile(path)

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("anthropic.model", cfg.Anthropic.Model)
	v.Set("anthropic.max_tokens", cfg.Anthropic.MaxTokens)
	v.Set("anthropic.use_bedrock", cfg.Anthropic.UseBedrock)
	v.Set("anthropic.aws_region", cfg.Anthropic.AWSRegion)
	v.Set("anthropic.aws_profile", cfg.Anthropic.AWSProfile)
	v.Set("gate.confidence_threshold", cfg.Gate.ConfidenceThreshold)
	v.Set("gate.max_tokens", cfg.Gate.MaxTokens)
	v.Set("escalation.timeout", cfg.Escalation.Timeout.String())
	v.Set("escalation.max_attempts", cfg.Escalation.MaxAttempts)
	v.Set("escalation.retry_delay", cfg.Escalation.RetryDelay.String())
	v.Set("cache.enabled", cfg.Cache.Enabled)
	v.Set("cache.backend", cfg.Cache.Backend)
	v.Set("cache.capacity", cfg.Cache.Capacity)
	v.Set("cache.ttl", cfg.Cache.TTL.String())
	v.Set("cache.path", cfg.Cache.Path)
	v.Set("cache.redis_addr", cfg.Cache.RedisAddr)
	v.Set("cache.redis_key", cfg.Cache.RedisKey)
	v.Set("scheduler.workers", cfg.Scheduler.Workers)
	v.Set("scheduler.task_timeout", cfg.Scheduler.TaskTimeout.String())
	v.Set("catalog.user_dir", cfg.Catalog.UserDir)
	v.Set("catalog.project_dir", cfg.Catalog.ProjectDir)
	v.Set("catalog.watch", cfg.Catalog.Watch)
	v.Set("history.enabled", cfg.History.Enabled)
	v.Set("history.retention", cfg.History.Retention.String())
	v.Set("logging.level", cfg.Logging.Level)
	v.Set("logging.file", cfg.Logging.File)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// setDefaults configures default values. Every key gets a default so that
// environment overrides and list replacement work per key.
func setDefaults(v *viper.Viper) {
	d := Default()

	// Anthropic defaults
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", d.Anthropic.Model)
	v.SetDefault("anthropic.max_tokens", d.Anthropic.MaxTokens)
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", d.Anthropic.AWSRegion)
	v.SetDefault("anthropic.aws_profile", "")

	// Rule classifier weights
	v.SetDefault("classifier.explicit_weight", d.Classifier.ExplicitWeight)
	v.SetDefault("classifier.implicit_weight", d.Classifier.ImplicitWeight)
	v.SetDefault("classifier.base_confidence", d.Classifier.BaseConfidence)
	v.SetDefault("classifier.confidence_step", d.Classifier.ConfidenceStep)
	v.SetDefault("classifier.max_confidence", d.Classifier.MaxConfidence)
	v.SetDefault("classifier.default_confidence", d.Classifier.DefaultConfidence)
	v.SetDefault("classifier.tie_penalty", d.Classifier.TiePenalty)
	v.SetDefault("classifier.standard_tokens", d.Classifier.StandardTokens)
	v.SetDefault("classifier.complex_tokens", d.Classifier.ComplexTokens)
	v.SetDefault("classifier.multi_module_items", d.Classifier.MultiModuleItems)

	// Escalation gate and backend
	v.SetDefault("gate.confidence_threshold", d.Gate.ConfidenceThreshold)
	v.SetDefault("gate.max_tokens", d.Gate.MaxTokens)
	v.SetDefault("escalation.timeout", d.Escalation.Timeout.String())
	v.SetDefault("escalation.max_attempts", d.Escalation.MaxAttempts)
	v.SetDefault("escalation.retry_delay", d.Escalation.RetryDelay.String())

	// Keyword lists
	v.SetDefault("lexicon.explicit_parallel", d.Lexicon.ExplicitParallel)
	v.SetDefault("lexicon.implicit_parallel", d.Lexicon.ImplicitParallel)
	v.SetDefault("lexicon.noun_markers", d.Lexicon.NounMarkers)
	v.SetDefault("lexicon.complex_markers", d.Lexicon.ComplexMarkers)
	v.SetDefault("lexicon.standard_markers", d.Lexicon.StandardMarkers)
	v.SetDefault("lexicon.ambiguity", d.Lexicon.Ambiguity)
	v.SetDefault("lexicon.separators", d.Lexicon.Separators)
	v.SetDefault("lexicon.conjunctions", d.Lexicon.Conjunctions)
	v.SetDefault("lexicon.contains_connectives", d.Lexicon.ContainsConnectives)
	v.SetDefault("lexicon.ordering_start", d.Lexicon.OrderingStart)
	v.SetDefault("lexicon.ordering_then", d.Lexicon.OrderingThen)
	v.SetDefault("lexicon.leading_verbs", d.Lexicon.LeadingVerbs)
	v.SetDefault("lexicon.development_task_types", d.Lexicon.DevelopmentTaskTypes)

	// Cache defaults
	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.capacity", d.Cache.Capacity)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())
	v.SetDefault("cache.path", "")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_key", d.Cache.RedisKey)

	// Scheduler defaults
	v.SetDefault("scheduler.workers", d.Scheduler.Workers)
	v.SetDefault("scheduler.task_timeout", d.Scheduler.TaskTimeout.String())

	// Catalog defaults
	v.SetDefault("catalog.user_dir", d.Catalog.UserDir)
	v.SetDefault("catalog.project_dir", d.Catalog.ProjectDir)
	v.SetDefault("catalog.watch", false)

	// History defaults
	v.SetDefault("history.enabled", d.History.Enabled)
	v.SetDefault("history.retention", d.History.Retention.String())

	// Logging defaults
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.file", d.Logging.File)
}

// getUserConfigDir returns the XDG config directory for the router.
func getUserConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, appName)
	}

	// Fall back to ~/.config/intentrouter
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", appName)
	}
	return filepath.Join(home, ".config", appName)
}

// findProjectConfig searches for .intentrouter.yaml in the current directory and parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, projectConfigName)
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

// expandPath expands ${VAR} references and a leading ~.
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Anthropic: AnthropicConfig{
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 4096,
			AWSRegion: "us-east-1",
		},
		Classifier: classify.DefaultScoring(),
		Gate:       classify.DefaultGateConfig(),
		Escalation: classify.DefaultEscalatorConfig(),
		Lexicon:    lexicon.Default(),
		Cache: CacheConfig{
			Enabled:  true,
			Backend:  BackendSQLite,
			Capacity: 1000,
			TTL:      7 * 24 * time.Hour,
			RedisKey: "intentrouter:intent_cache",
		},
		Scheduler: SchedulerConfig{
			Workers:     3,
			TaskTimeout: 180 * time.Second,
		},
		Catalog: CatalogConfig{
			UserDir:    filepath.Join(getUserConfigDir(), "catalog"),
			ProjectDir: filepath.Join(".intentrouter", "catalog"),
		},
		History: HistoryConfig{
			Enabled:   true,
			Retention: 30 * 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  filepath.Join(".intentrouter", "logs", "router.log"),
		},
	}
}
