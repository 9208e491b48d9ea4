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
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai" mapstructure:"openai"`
	Judge     JudgeConfig     `yaml:"judge" mapstructure:"judge"`
	Cascade   CascadeConfig   `yaml:"cascade" mapstructure:"cascade"`
	Prefilter PrefilterConfig `yaml:"prefilter" mapstructure:"prefilter"`
	Rerank    RerankConfig    `yaml:"rerank" mapstructure:"rerank"`
	Guardrail GuardrailConfig `yaml:"guardrail" mapstructure:"guardrail"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key         string `yaml:"key" mapstructure:"key"`
	HaikuModel  string `yaml:"haiku_model" mapstructure:"haiku_model"`
	SonnetModel string `yaml:"sonnet_model" mapstructure:"sonnet_model"`
}

// OpenAIConfig holds settings for an OpenAI-compatible chat API.
type OpenAIConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	MiniModel  string `yaml:"mini_model" mapstructure:"mini_model"`
	LargeModel string `yaml:"large_model" mapstructure:"large_model"`
}

// JudgeConfig tunes stage collection against the providers.
type JudgeConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
}

// CascadeConfig tunes the consensus reduction.
type CascadeConfig struct {
	StrongAssignConfidence float64 `yaml:"strong_assign_confidence" mapstructure:"strong_assign_confidence"`
}

// PrefilterConfig tunes the junk call screen.
type PrefilterConfig struct {
	MinWordCount         int `yaml:"min_word_count" mapstructure:"min_word_count"`
	ShortDurationSeconds int `yaml:"short_duration_seconds" mapstructure:"short_duration_seconds"`
}

// RerankConfig tunes reciprocal rank fusion and tier labeling.
type RerankConfig struct {
	K                int     `yaml:"k" mapstructure:"k"`
	TopN             int     `yaml:"top_n" mapstructure:"top_n"`
	SmokingGunCutoff float64 `yaml:"smoking_gun_cutoff" mapstructure:"smoking_gun_cutoff"`
	StrongCutoff     float64 `yaml:"strong_cutoff" mapstructure:"strong_cutoff"`
	ModerateCutoff   float64 `yaml:"moderate_cutoff" mapstructure:"moderate_cutoff"`
}

// GuardrailConfig tunes the post-inference guardrails.
type GuardrailConfig struct {
	SmokingGunFloor float64 `yaml:"smoking_gun_floor" mapstructure:"smoking_gun_floor"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
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
	v.SetEnvPrefix("CALLROUTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("anthropic.haiku_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.sonnet_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.mini_model", "gpt-4o-mini")
	v.SetDefault("openai.large_model", "gpt-4o")
	v.SetDefault("judge.requests_per_second", 4)
	v.SetDefault("judge.burst", 2)
	v.SetDefault("cascade.strong_assign_confidence", 0.75)
	v.SetDefault("prefilter.min_word_count", 20)
	v.SetDefault("prefilter.short_duration_seconds", 15)
	v.SetDefault("rerank.k", 60)
	v.SetDefault("rerank.top_n", 20)
	v.SetDefault("rerank.smoking_gun_cutoff", 0.045)
	v.SetDefault("rerank.strong_cutoff", 0.030)
	v.SetDefault("rerank.moderate_cutoff", 0.015)
	v.SetDefault("guardrail.smoking_gun_floor", 0.85)

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

// Validate checks the fields a given command mode depends on.
// Modes: "route" (provider calls required), "serve", "prefilter".
func (c *Config) Validate(mode string) error {
	var missing []string

	checkCommon := func() {
		if c.Server.Port <= 0 {
			missing = append(missing, "server.port must be > 0")
		}
		if c.Judge.RequestsPerSecond < 0 {
			missing = append(missing, "judge.requests_per_second must be >= 0")
		}
		if c.Cascade.StrongAssignConfidence < 0 || c.Cascade.StrongAssignConfidence > 1 {
			missing = append(missing, "cascade.strong_assign_confidence must be within [0, 1]")
		}
		if c.Guardrail.SmokingGunFloor < 0 || c.Guardrail.SmokingGunFloor > 1 {
			missing = append(missing, "guardrail.smoking_gun_floor must be within [0, 1]")
		}
		if c.Rerank.K <= 0 {
			missing = append(missing, "rerank.k must be > 0")
		}
		if !(c.Rerank.SmokingGunCutoff > c.Rerank.StrongCutoff && c.Rerank.StrongCutoff > c.Rerank.ModerateCutoff && c.Rerank.ModerateCutoff > 0) {
			missing = append(missing, "rerank tier cutoffs must be strictly descending and positive")
		}
	}

	switch mode {
	case "route":
		checkCommon()
		if c.Anthropic.Key == "" {
			missing = append(missing, "anthropic.key is required")
		}
		if c.OpenAI.Key == "" {
			missing = append(missing, "openai.key is required")
		}
	case "serve":
		checkCommon()
		if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
			missing = append(missing, "store.database_url is required")
		}
	case "prefilter":
		if c.Prefilter.MinWordCount <= 0 {
			missing = append(missing, "prefilter.min_word_count must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
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
