package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Cache     CacheConfig          `yaml:"cache" mapstructure:"cache"`
	Providers ProvidersConfig      `yaml:"providers" mapstructure:"providers"`
	Geocode   GeocodeConfig        `yaml:"geocode" mapstructure:"geocode"`
	Places    PlacesConfig         `yaml:"places" mapstructure:"places"`
	Consensus ConsensusConfig      `yaml:"consensus" mapstructure:"consensus"`
	Server     ServerConfig        `yaml:"server" mapstructure:"server"`
	Resilience ResilienceConfig    `yaml:"resilience" mapstructure:"resilience"`
	Log        LogConfig           `yaml:"log" mapstructure:"log"`
}

// ResilienceConfig tunes the retry and circuit-breaker behavior shared by
// every outbound adapter: the LLM providers, the geocoder and the places
// API. Provider calls are the pipeline's slowest and
// least reliable dependency, so these values are deliberately more patient
// than a typical internal RPC: three attempts with a longer initial
// backoff gives a rate-limited provider room to recover before synthesis
// falls back to whichever providers remain available.
type ResilienceConfig struct {
	RetryMaxAttempts        int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryInitialBackoffMs   int     `yaml:"retry_initial_backoff_ms" mapstructure:"retry_initial_backoff_ms"`
	RetryMaxBackoffMs       int     `yaml:"retry_max_backoff_ms" mapstructure:"retry_max_backoff_ms"`
	RetryMultiplier         float64 `yaml:"retry_multiplier" mapstructure:"retry_multiplier"`
	RetryJitterFraction     float64 `yaml:"retry_jitter_fraction" mapstructure:"retry_jitter_fraction"`
	CircuitFailureThreshold int     `yaml:"circuit_failure_threshold" mapstructure:"circuit_failure_threshold"`
	CircuitResetTimeoutSecs int     `yaml:"circuit_reset_timeout_secs" mapstructure:"circuit_reset_timeout_secs"`
}

// CacheConfig configures the grid-keyed consolidated-response cache.
type CacheConfig struct {
	Dir                        string `yaml:"dir" mapstructure:"dir"`
	DefaultTTLHours            int    `yaml:"default_ttl_hours" mapstructure:"default_ttl_hours"`
	GridPrecisionDecimalPlaces int    `yaml:"grid_precision_decimal_places" mapstructure:"grid_precision_decimal_places"`
	PurgeOnStartup             bool   `yaml:"purge_on_startup" mapstructure:"purge_on_startup"`
}

// ProvidersConfig groups the per-provider LLM adapter settings.
type ProvidersConfig struct {
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity ProviderConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Streaming  ProviderConfig `yaml:"streaming" mapstructure:"streaming"`
}

// ProviderConfig is the common shape every LLM provider adapter reads from.
type ProviderConfig struct {
	Enabled        bool   `yaml:"enabled" mapstructure:"enabled"`
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	Model          string `yaml:"model" mapstructure:"model"`
	Endpoint       string `yaml:"endpoint" mapstructure:"endpoint"`
	MaxTokens      int    `yaml:"max_tokens" mapstructure:"max_tokens"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// GeocodeConfig configures the forward/reverse geocoding adapter.
type GeocodeConfig struct {
	APIKey         string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RateLimitQPS   int    `yaml:"rate_limit_qps" mapstructure:"rate_limit_qps"`
}

// PlacesConfig configures the nearby real-world places adapter.
type PlacesConfig struct {
	APIKey              string `yaml:"api_key" mapstructure:"api_key"`
	BaseURL             string `yaml:"base_url" mapstructure:"base_url"`
	DefaultRadiusMeters int    `yaml:"default_radius_meters" mapstructure:"default_radius_meters"`
	MaxResults          int    `yaml:"max_results" mapstructure:"max_results"`
	TimeoutSeconds      int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	RateLimitQPS        int    `yaml:"rate_limit_qps" mapstructure:"rate_limit_qps"`
}

// ConsensusConfig holds the consensus.cross_validation_concurrency setting.
// The pipeline does not read it; the cross-validation fan-out limit is the
// constant consensus.CrossValidationConcurrency.
type ConsensusConfig struct {
	CrossValidationConcurrency int `yaml:"cross_validation_concurrency" mapstructure:"cross_validation_concurrency"`
}

// ServerConfig configures the CLI/server process bootstrap.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment. If configPath is
// non-empty it is read as an explicit file instead of the default
// ./config.yaml search.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("RECS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("cache.dir", "./data/cache")
	v.SetDefault("cache.default_ttl_hours", 24)
	v.SetDefault("cache.grid_precision_decimal_places", 3)
	v.SetDefault("cache.purge_on_startup", true)

	v.SetDefault("providers.anthropic.enabled", false)
	v.SetDefault("providers.anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("providers.anthropic.max_tokens", 4096)
	v.SetDefault("providers.anthropic.timeout_seconds", 30)

	v.SetDefault("providers.perplexity.enabled", false)
	v.SetDefault("providers.perplexity.endpoint", "https://api.perplexity.ai")
	v.SetDefault("providers.perplexity.model", "sonar-pro")
	v.SetDefault("providers.perplexity.max_tokens", 4096)
	v.SetDefault("providers.perplexity.timeout_seconds", 30)

	v.SetDefault("providers.streaming.enabled", false)
	v.SetDefault("providers.streaming.max_tokens", 4096)
	v.SetDefault("providers.streaming.timeout_seconds", 120)

	v.SetDefault("geocode.base_url", "https://maps.googleapis.com/maps/api/geocode/json")
	v.SetDefault("geocode.timeout_seconds", 10)
	v.SetDefault("geocode.rate_limit_qps", 10)

	v.SetDefault("places.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("places.default_radius_meters", 1000)
	v.SetDefault("places.max_results", 20)
	v.SetDefault("places.timeout_seconds", 10)
	v.SetDefault("places.rate_limit_qps", 10)

	v.SetDefault("consensus.cross_validation_concurrency", 8)

	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 750)
	v.SetDefault("resilience.retry_max_backoff_ms", 20_000)
	v.SetDefault("resilience.retry_multiplier", 2.0)
	v.SetDefault("resilience.retry_jitter_fraction", 0.25)
	v.SetDefault("resilience.circuit_failure_threshold", 4)
	v.SetDefault("resilience.circuit_reset_timeout_secs", 45)

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
