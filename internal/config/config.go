package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	LLM     LLMConfig     `yaml:"llm" mapstructure:"llm"`
	Retry   RetryConfig   `yaml:"retry" mapstructure:"retry"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Style   StyleConfig   `yaml:"style" mapstructure:"style"`
	Pricing PricingConfig `yaml:"pricing" mapstructure:"pricing"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects the completion provider and bounds its requests.
type LLMConfig struct {
	Provider            string  `yaml:"provider" mapstructure:"provider"`
	Model               string  `yaml:"model" mapstructure:"model"`
	AnthropicKey        string  `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel      string  `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	OpenAIKey           string  `yaml:"openai_key" mapstructure:"openai_key"`
	OpenAIModel         string  `yaml:"openai_model" mapstructure:"openai_model"`
	BaseURL             string  `yaml:"base_url" mapstructure:"base_url"`
	ExtractTemperature  float64 `yaml:"extract_temperature" mapstructure:"extract_temperature"`
	AnalysisTemperature float64 `yaml:"analysis_temperature" mapstructure:"analysis_temperature"`
	MaxTokens           int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxInputChars       int     `yaml:"max_input_chars" mapstructure:"max_input_chars"`
	ShortInputChars     int     `yaml:"short_input_chars" mapstructure:"short_input_chars"`
	RequestsPerSec      float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	Burst               int     `yaml:"burst" mapstructure:"burst"`
}

// ResolvedModel returns Model if set, otherwise the provider's default model.
func (c LLMConfig) ResolvedModel() string {
	if c.Model != "" {
		return c.Model
	}
	if c.Provider == "openai" {
		return c.OpenAIModel
	}
	return c.AnthropicModel
}

// RetryConfig configures the completion retry policy.
type RetryConfig struct {
	MaxAttempts        int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs   int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs       int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier         float64 `yaml:"multiplier" mapstructure:"multiplier"`
	RateLimitPenaltyMs int     `yaml:"rate_limit_penalty_ms" mapstructure:"rate_limit_penalty_ms"`
}

// CacheConfig configures the completion response cache.
type CacheConfig struct {
	Driver     string `yaml:"driver" mapstructure:"driver"`
	DSN        string `yaml:"dsn" mapstructure:"dsn"`
	TTLMinutes int    `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// OCRConfig configures PDF text extraction.
type OCRConfig struct {
	Provider      string `yaml:"provider" mapstructure:"provider"`
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MistralKey    string `yaml:"mistral_api_key" mapstructure:"mistral_api_key"`
	MistralModel  string `yaml:"mistral_ocr_model" mapstructure:"mistral_ocr_model"`
}

// StyleConfig configures the analysis writing rules and value formatting.
type StyleConfig struct {
	GuidePath string `yaml:"guide_path" mapstructure:"guide_path"`
	Currency  string `yaml:"currency" mapstructure:"currency"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Anthropic map[string]ModelPricing `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI    map[string]ModelPricing `yaml:"openai" mapstructure:"openai"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	MaxUploadMB    int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
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
	v.SetEnvPrefix("ANALYST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.model", "")
	v.SetDefault("llm.anthropic_key", "")
	v.SetDefault("llm.openai_key", "")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.anthropic_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("llm.openai_model", "gpt-4o")
	v.SetDefault("llm.extract_temperature", 0.1)
	v.SetDefault("llm.analysis_temperature", 0.7)
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("llm.max_input_chars", 12000)
	v.SetDefault("llm.short_input_chars", 4000)
	v.SetDefault("llm.requests_per_sec", 2.0)
	v.SetDefault("llm.burst", 2)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 1000)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.rate_limit_penalty_ms", 1000)
	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.dsn", ":memory:")
	v.SetDefault("cache.ttl_minutes", 60)
	v.SetDefault("ocr.provider", "native")
	v.SetDefault("ocr.pdftotext_path", "pdftotext")
	v.SetDefault("ocr.mistral_api_key", "")
	v.SetDefault("ocr.mistral_ocr_model", "mistral-ocr-latest")
	v.SetDefault("style.guide_path", "")
	v.SetDefault("style.currency", "£")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.max_upload_mb", 10)
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

// Validate checks the settings a command mode needs. Mode is "analyze",
// "extract", or "serve". All problems are reported together.
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.LLM.Provider {
	case "anthropic":
		if c.LLM.AnthropicKey == "" {
			errs = append(errs, "llm.anthropic_key is required for the anthropic provider")
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			errs = append(errs, "llm.openai_key is required for the openai provider")
		}
	default:
		errs = append(errs, fmt.Sprintf("llm.provider %q is not supported", c.LLM.Provider))
	}
	if c.LLM.MaxInputChars <= 0 {
		errs = append(errs, "llm.max_input_chars must be positive")
	}
	if c.OCR.Provider == "mistral" && c.OCR.MistralKey == "" {
		errs = append(errs, "ocr.mistral_api_key is required for the mistral provider")
	}
	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(errs, "; "))
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
