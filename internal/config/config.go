// Package config loads the service configuration from a file, the
// environment and flags through viper.
package config

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/coderheist/rest.ai-sub000/internal/llm"
	"github.com/coderheist/rest.ai-sub000/internal/scoring"
	"github.com/go-viper/mapstructure/v2"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// AppName is the config file base name and the default tracing service name.
const AppName = "matchengine"

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Matching  MatchingConfig  `mapstructure:"matching"`
	RateLimit RateLimitConfig `mapstructure:"rate-limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle-timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout"`
}

type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// RedisConfig configures the job stats cache. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	StatsTTL time.Duration `mapstructure:"stats-ttl"`
}

// LLMConfig configures the scoring oracle. An empty APIKey means rule-based
// scoring only.
type LLMConfig struct {
	Provider        string        `mapstructure:"provider"`
	APIKey          string        `mapstructure:"api-key"`
	Model           string        `mapstructure:"model"`
	Temperature     float32       `mapstructure:"temperature"`
	MaxOutputTokens int32         `mapstructure:"max-output-tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt-secret"`
	JWTExpirationHours int    `mapstructure:"jwt-expiration-hours"`
}

// MatchingConfig tunes the orchestrator. An empty RefreshSchedule disables
// periodic rank refresh.
type MatchingConfig struct {
	Workers         int             `mapstructure:"workers"`
	RefreshSchedule string          `mapstructure:"refresh-schedule"`
	Weights         scoring.Weights `mapstructure:"weights"`
}

type RateLimitConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	DefaultLimit    int           `mapstructure:"default-limit"`
	DefaultWindow   time.Duration `mapstructure:"default-window"`
	CleanupInterval time.Duration `mapstructure:"cleanup-interval"`
	Whitelist       []string      `mapstructure:"whitelist"`
	Blacklist       []string      `mapstructure:"blacklist"`
}

// Tracing exporters.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	ServiceName string  `mapstructure:"service-name"`
	Endpoint    string  `mapstructure:"endpoint"`
	Insecure    bool    `mapstructure:"insecure"`
	SampleRatio float64 `mapstructure:"sample-ratio"`
}

type LogConfig struct {
	JSON  bool `mapstructure:"json"`
	Debug bool `mapstructure:"debug"`
}

// SetDefaults registers every key with its default so the environment can
// override keys that appear in no config file.
func SetDefaults(v *viper.Viper) {
	weights := scoring.DefaultWeights()

	defaults := map[string]any{
		"server.port":             8080,
		"server.read-timeout":     15 * time.Second,
		"server.write-timeout":    5 * time.Minute,
		"server.idle-timeout":     60 * time.Second,
		"server.shutdown-timeout": 30 * time.Second,

		"database.url": "",

		"redis.addr":      "",
		"redis.password":  "",
		"redis.db":        0,
		"redis.stats-ttl": 10 * time.Minute,

		"llm.provider":          string(llm.ProviderGemini),
		"llm.api-key":           "",
		"llm.model":             "",
		"llm.temperature":       llm.DefaultTemperature,
		"llm.max-output-tokens": llm.DefaultMaxOutputTokens,
		"llm.timeout":           scoring.DefaultAITimeout,

		"auth.jwt-secret":           "",
		"auth.jwt-expiration-hours": 24,

		"matching.workers":            4,
		"matching.refresh-schedule":   "",
		"matching.weights.skills":     weights.Skills,
		"matching.weights.experience": weights.Experience,
		"matching.weights.education":  weights.Education,

		"rate-limit.enabled":          true,
		"rate-limit.default-limit":    1000,
		"rate-limit.default-window":   time.Minute,
		"rate-limit.cleanup-interval": 5 * time.Minute,
		"rate-limit.whitelist":        []string{},
		"rate-limit.blacklist":        []string{},

		"tracing.enabled":      false,
		"tracing.exporter":     ExporterOTLP,
		"tracing.service-name": AppName,
		"tracing.endpoint":     "localhost:4318",
		"tracing.insecure":     true,
		"tracing.sample-ratio": 1.0,

		"log.json":  false,
		"log.debug": false,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

// envAliases binds the historical variable names that do not follow the
// SECTION_KEY convention.
var envAliases = map[string]string{
	"llm.api-key":               "GEMINI_API_KEY",
	"auth.jwt-secret":           "JWT_SECRET",
	"auth.jwt-expiration-hours": "JWT_EXPIRATION_HOURS",
	"server.port":               "PORT",
}

// BindEnv maps keys to environment variables: "rate-limit.default-limit"
// reads RATE_LIMIT_DEFAULT_LIMIT, plus the aliases above.
func BindEnv(v *viper.Viper) error {
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range envAliases {
		if err := v.BindEnv(key, strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key)), env); err != nil {
			return fmt.Errorf("binding %s: %w", env, err)
		}
	}
	return nil
}

// Load applies defaults and environment bindings to v, decodes it and
// validates the result. v may already hold a config file and bound flags.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)
	if err := BindEnv(v); err != nil {
		return nil, err
	}

	var cfg Config
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		stringToTrimmedSliceHook(","),
	)))
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// stringToTrimmedSliceHook splits comma lists from the environment and
// drops blank items.
func stringToTrimmedSliceHook(sep string) mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != reflect.TypeOf([]string{}) {
			return data, nil
		}
		out := []string{}
		for _, item := range strings.Split(data.(string), sep) {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out, nil
	}
}

// Validate checks that the configuration has valid values. Secrets are not
// required here; commands that need them check at use.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("config error: 'server.port' must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("config error: 'server.shutdown-timeout' must be positive")
	}

	if c.LLM.Provider != string(llm.ProviderGemini) {
		return fmt.Errorf("config error: unsupported 'llm.provider' %q", c.LLM.Provider)
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("config error: 'llm.temperature' must be between 0 and 2")
	}
	if c.LLM.MaxOutputTokens < 1 {
		return fmt.Errorf("config error: 'llm.max-output-tokens' must be positive")
	}
	if c.LLM.Timeout <= 0 {
		return fmt.Errorf("config error: 'llm.timeout' must be positive")
	}

	if c.Matching.Workers < 1 {
		return fmt.Errorf("config error: 'matching.workers' must be at least 1")
	}
	if err := c.Matching.Weights.Validate(); err != nil {
		return fmt.Errorf("config error: 'matching.weights': %w", err)
	}
	if c.Matching.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(c.Matching.RefreshSchedule); err != nil {
			return fmt.Errorf("config error: 'matching.refresh-schedule': %w", err)
		}
	}

	if c.Redis.Addr != "" && c.Redis.StatsTTL <= 0 {
		return fmt.Errorf("config error: 'redis.stats-ttl' must be positive")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.DefaultLimit < 1 {
			return fmt.Errorf("config error: 'rate-limit.default-limit' must be positive")
		}
		if c.RateLimit.DefaultWindow <= 0 {
			return fmt.Errorf("config error: 'rate-limit.default-window' must be positive")
		}
	}

	if c.Tracing.Enabled {
		if c.Tracing.Exporter != ExporterOTLP && c.Tracing.Exporter != ExporterStdout {
			return fmt.Errorf("config error: 'tracing.exporter' must be %q or %q", ExporterOTLP, ExporterStdout)
		}
		if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
			return fmt.Errorf("config error: 'tracing.sample-ratio' must be between 0 and 1")
		}
	}

	return nil
}

// LLMClientConfig builds the client config. A configured model overrides
// every tier.
func (c LLMConfig) LLMClientConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	cfg.Provider = llm.Provider(c.Provider)
	cfg.Temperature = c.Temperature
	cfg.MaxOutputTokens = c.MaxOutputTokens
	if c.Model != "" {
		for _, tier := range []llm.ModelTier{llm.TierLite, llm.TierStandard, llm.TierAdvanced} {
			cfg = cfg.WithModel(tier, c.Model)
		}
	}
	return cfg
}
