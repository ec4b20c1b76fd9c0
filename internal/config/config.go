package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the placement service.
type Config struct {
	AppName             string
	AppEnv              string
	AppPort             string
	LogLevel            string
	DatabaseURL         string
	RedisURL            string
	NATSURL             string
	EventSubject        string
	JWTSecret           string
	LLMProvider         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	GeminiAPIKey        string
	GeminiBaseURL       string
	LLMModel            string
	LLMTemperature      float32
	LLMMaxTokens        int
	LLMTimeout          time.Duration
	ContextTTL          time.Duration
	QuestionCacheTTL    time.Duration
	PromptsDir          string
	EvaluationRateLimit int
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// LLMAPIKey returns the key of the configured provider.
func (c Config) LLMAPIKey() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiAPIKey
	}
	return c.OpenAIAPIKey
}

// LLMBaseURL returns the endpoint override of the configured provider.
func (c Config) LLMBaseURL() string {
	if c.LLMProvider == "gemini" {
		return c.GeminiBaseURL
	}
	return c.OpenAIBaseURL
}

// Load reads configuration values from environment variables and optional .env file.
// Keys use the CEFR_ prefix, e.g. CEFR_DATABASE_URL or CEFR_LLM_PROVIDER.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("CEFR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "CEFR Placement API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("nats.subject", "cefr")
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.timeout", "0s")
	v.SetDefault("evaluation.context_ttl", "24h")
	v.SetDefault("evaluation.rate_limit", 30)
	v.SetDefault("questions.cache_ttl", "5m")

	contextTTL, err := parseDuration(v, "evaluation.context_ttl")
	if err != nil {
		return Config{}, err
	}
	if contextTTL <= 0 {
		return Config{}, fmt.Errorf("evaluation context ttl must be positive")
	}

	llmTimeout, err := parseDuration(v, "llm.timeout")
	if err != nil {
		return Config{}, err
	}

	questionTTL, err := parseDuration(v, "questions.cache_ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:             v.GetString("app.name"),
		AppEnv:              v.GetString("app.env"),
		AppPort:             v.GetString("app.port"),
		LogLevel:            strings.ToLower(v.GetString("log.level")),
		DatabaseURL:         v.GetString("database.url"),
		RedisURL:            v.GetString("redis.url"),
		NATSURL:             v.GetString("nats.url"),
		EventSubject:        v.GetString("nats.subject"),
		JWTSecret:           v.GetString("jwt.secret"),
		LLMProvider:         strings.ToLower(strings.TrimSpace(v.GetString("llm.provider"))),
		OpenAIAPIKey:        v.GetString("openai_api_key"),
		OpenAIBaseURL:       v.GetString("openai_base_url"),
		GeminiAPIKey:        v.GetString("gemini_api_key"),
		GeminiBaseURL:       v.GetString("gemini_base_url"),
		LLMModel:            v.GetString("llm.model"),
		LLMTemperature:      float32(v.GetFloat64("llm.temperature")),
		LLMMaxTokens:        v.GetInt("llm.max_tokens"),
		LLMTimeout:          llmTimeout,
		ContextTTL:          contextTTL,
		QuestionCacheTTL:    questionTTL,
		PromptsDir:          v.GetString("prompts.dir"),
		EvaluationRateLimit: v.GetInt("evaluation.rate_limit"),
	}

	switch cfg.LLMProvider {
	case "openai", "gemini":
	default:
		return Config{}, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}

	if cfg.LLMTemperature <= 0 {
		return Config{}, fmt.Errorf("llm temperature must be positive")
	}

	if cfg.LLMMaxTokens <= 0 {
		cfg.LLMMaxTokens = 2048
	}

	return cfg, nil
}

func parseDuration(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(v.GetString(key))
	if raw == "" {
		return 0, nil
	}
	duration, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return duration, nil
}
