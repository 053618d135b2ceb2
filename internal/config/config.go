package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/prerace-cli/internal/confidence"
	"github.com/sells-group/prerace-cli/internal/model"
	"github.com/sells-group/prerace-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Capture    CaptureConfig    `yaml:"capture" mapstructure:"capture"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Resolver   ResolverConfig   `yaml:"resolver" mapstructure:"resolver"`
	Collect    CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Integrate  IntegrateConfig  `yaml:"integrate" mapstructure:"integrate"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Model      ModelConfig      `yaml:"model" mapstructure:"model"`
	Schedule   ScheduleConfig   `yaml:"schedule" mapstructure:"schedule"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// CaptureConfig controls when capture starts and how long collection may run.
type CaptureConfig struct {
	LeadInterval       time.Duration `yaml:"lead_interval" mapstructure:"lead_interval"`
	ProgressInterval   time.Duration `yaml:"progress_interval" mapstructure:"progress_interval"`
	CollectionDeadline time.Duration `yaml:"collection_deadline" mapstructure:"collection_deadline"`
}

// RetryConfig holds the per-source retry policy.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier         float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction     float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
	AttemptTimeoutSecs int     `yaml:"attempt_timeout_secs" mapstructure:"attempt_timeout_secs"`
}

// Policy converts to a resilience.RetryConfig.
func (r RetryConfig) Policy() resilience.RetryConfig {
	return resilience.FromRetryConfig(r.MaxAttempts, r.InitialBackoffMs, r.MaxBackoffMs,
		r.Multiplier, r.JitterFraction, r.AttemptTimeoutSecs)
}

// RateLimitConfig sets the minimum spacing between requests to one source.
type RateLimitConfig struct {
	MinSpacingMs int `yaml:"min_spacing_ms" mapstructure:"min_spacing_ms"`
}

// MinSpacing returns the spacing as a duration.
func (r RateLimitConfig) MinSpacing() time.Duration {
	return time.Duration(r.MinSpacingMs) * time.Millisecond
}

// ResolverConfig configures jockey name resolution.
type ResolverConfig struct {
	MinSimilarity  float64 `yaml:"min_similarity" mapstructure:"min_similarity"`
	MasterListPath string  `yaml:"master_list_path" mapstructure:"master_list_path"`
}

// CollectConfig sets the minimum source subset.
type CollectConfig struct {
	MinSources      int      `yaml:"min_sources" mapstructure:"min_sources"`
	RequiredSources []string `yaml:"required_sources" mapstructure:"required_sources"`
}

// IntegrateConfig controls merging and validation.
type IntegrateConfig struct {
	ExcludeIncomplete bool `yaml:"exclude_incomplete" mapstructure:"exclude_incomplete"`
	HistoryDepth      int  `yaml:"history_depth" mapstructure:"history_depth"`
}

// ConfidenceConfig holds the grade bands and the value-pick odds threshold.
type ConfidenceConfig struct {
	TopThreshold  float64 `yaml:"top_threshold" mapstructure:"top_threshold"`
	MidThreshold  float64 `yaml:"mid_threshold" mapstructure:"mid_threshold"`
	BaseThreshold float64 `yaml:"base_threshold" mapstructure:"base_threshold"`
	OddsThreshold float64 `yaml:"odds_threshold" mapstructure:"odds_threshold"`
}

// Evaluator converts to a confidence.Config.
func (c ConfidenceConfig) Evaluator() confidence.Config {
	return confidence.Config{
		TopThreshold:  c.TopThreshold,
		MidThreshold:  c.MidThreshold,
		BaseThreshold: c.BaseThreshold,
		OddsThreshold: c.OddsThreshold,
	}
}

// SourcesConfig holds the base URLs of the data sources.
type SourcesConfig struct {
	InfoURL     string `yaml:"info_url" mapstructure:"info_url"`
	HistoryURL  string `yaml:"history_url" mapstructure:"history_url"`
	OddsURL     string `yaml:"odds_url" mapstructure:"odds_url"`
	ScheduleURL string `yaml:"schedule_url" mapstructure:"schedule_url"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// URL returns the base URL for kind.
func (s SourcesConfig) URL(kind model.SourceKind) string {
	switch kind {
	case model.SourceInfo:
		return s.InfoURL
	case model.SourceHistory:
		return s.HistoryURL
	case model.SourceOdds:
		return s.OddsURL
	default:
		return ""
	}
}

// ModelConfig points at the scoring service.
type ModelConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ScheduleConfig controls the daily schedule cache.
type ScheduleConfig struct {
	CacheTTLHours int `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PRERACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("capture.lead_interval", "5m")
	v.SetDefault("capture.progress_interval", "1s")
	v.SetDefault("capture.collection_deadline", "3m")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 8000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("retry.attempt_timeout_secs", 20)
	v.SetDefault("rate_limit.min_spacing_ms", 2000)
	v.SetDefault("resolver.min_similarity", 0.75)
	v.SetDefault("resolver.master_list_path", "jockeys.yaml")
	v.SetDefault("collect.min_sources", 2)
	v.SetDefault("collect.required_sources", []string{})
	v.SetDefault("integrate.exclude_incomplete", true)
	v.SetDefault("integrate.history_depth", 3)
	v.SetDefault("confidence.top_threshold", confidence.DefaultTopThreshold)
	v.SetDefault("confidence.mid_threshold", confidence.DefaultMidThreshold)
	v.SetDefault("confidence.base_threshold", confidence.DefaultBaseThreshold)
	v.SetDefault("confidence.odds_threshold", confidence.DefaultOddsThreshold)
	v.SetDefault("sources.info_url", "")
	v.SetDefault("sources.history_url", "")
	v.SetDefault("sources.odds_url", "")
	v.SetDefault("sources.schedule_url", "")
	v.SetDefault("sources.user_agent", "prerace-cli/1.0")
	v.SetDefault("model.url", "")
	v.SetDefault("model.timeout_secs", 10)
	v.SetDefault("schedule.cache_ttl_hours", 18)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prerace.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings needed by mode ("capture", "schedule" or
// "runs") and reports every violation at once.
func (c *Config) Validate(mode string) error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		add("store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		add("store.database_url is required")
	}

	switch mode {
	case "runs":
	case "schedule":
		if c.Sources.ScheduleURL == "" {
			add("sources.schedule_url is required")
		}
		if c.Schedule.CacheTTLHours <= 0 {
			add("schedule.cache_ttl_hours must be > 0")
		}
	case "capture":
		if c.Sources.ScheduleURL == "" {
			add("sources.schedule_url is required")
		}
		for _, k := range model.AllSources {
			if c.Sources.URL(k) == "" {
				add("sources.%s_url is required", k)
			}
		}
		if c.Model.URL == "" {
			add("model.url is required")
		}
		if c.Capture.LeadInterval <= 0 {
			add("capture.lead_interval must be > 0")
		}
		if c.Capture.ProgressInterval <= 0 {
			add("capture.progress_interval must be > 0")
		}
		if c.Capture.CollectionDeadline <= 0 {
			add("capture.collection_deadline must be > 0")
		} else if c.Capture.CollectionDeadline >= c.Capture.LeadInterval {
			add("capture.collection_deadline must be shorter than capture.lead_interval")
		}
		if c.Retry.MaxAttempts < 1 || c.Retry.MaxAttempts > 10 {
			add("retry.max_attempts must be between 1 and 10")
		}
		if c.Retry.JitterFraction < 0 || c.Retry.JitterFraction > 1 {
			add("retry.jitter_fraction must be between 0 and 1")
		}
		if c.RateLimit.MinSpacingMs < 0 {
			add("rate_limit.min_spacing_ms must be >= 0")
		}
		if c.Resolver.MinSimilarity <= 0 || c.Resolver.MinSimilarity > 1 {
			add("resolver.min_similarity must be in (0, 1]")
		}
		if c.Resolver.MasterListPath == "" {
			add("resolver.master_list_path is required")
		}
		if c.Collect.MinSources < 1 || c.Collect.MinSources > len(model.AllSources) {
			add("collect.min_sources must be between 1 and %d", len(model.AllSources))
		}
		for _, s := range c.Collect.RequiredSources {
			if !model.SourceKind(s).Valid() {
				add("collect.required_sources: unknown source %q", s)
			}
		}
		if c.Integrate.HistoryDepth < 1 || c.Integrate.HistoryDepth > model.ContinuityDepth {
			add("integrate.history_depth must be between 1 and %d", model.ContinuityDepth)
		}
		if err := c.Confidence.Evaluator().Validate(); err != nil {
			add("%s", strings.TrimPrefix(err.Error(), "confidence: "))
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
