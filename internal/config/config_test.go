package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CEFR_OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "openai", cfg.LLMProvider)
	require.Equal(t, "sk-test", cfg.LLMAPIKey())
	require.InDelta(t, 0.7, float64(cfg.LLMTemperature), 1e-6)
	require.Equal(t, 2048, cfg.LLMMaxTokens)
	require.Zero(t, cfg.LLMTimeout)
	require.Equal(t, 24*time.Hour, cfg.ContextTTL)
	require.Equal(t, 5*time.Minute, cfg.QuestionCacheTTL)
	require.Equal(t, ":8080", cfg.HTTPAddress())
}

func TestLoadReadsOverrides(t *testing.T) {
	t.Setenv("CEFR_LLM_PROVIDER", "Gemini")
	t.Setenv("CEFR_GEMINI_API_KEY", "g-key")
	t.Setenv("CEFR_OPENAI_BASE_URL", "http://openai.local")
	t.Setenv("CEFR_GEMINI_BASE_URL", "http://gemini.local")
	t.Setenv("CEFR_LLM_TIMEOUT", "45s")
	t.Setenv("CEFR_EVALUATION_CONTEXT_TTL", "2h")
	t.Setenv("CEFR_APP_PORT", ":9090")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "gemini", cfg.LLMProvider)
	require.Equal(t, "g-key", cfg.LLMAPIKey())
	require.Equal(t, "http://gemini.local", cfg.LLMBaseURL())
	require.Equal(t, 45*time.Second, cfg.LLMTimeout)
	require.Equal(t, 2*time.Hour, cfg.ContextTTL)
	require.Equal(t, ":9090", cfg.HTTPAddress())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Run("provider", func(t *testing.T) {
		t.Setenv("CEFR_LLM_PROVIDER", "anthropic")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("context ttl", func(t *testing.T) {
		t.Setenv("CEFR_EVALUATION_CONTEXT_TTL", "tomorrow")
		_, err := Load()
		require.Error(t, err)
	})
}
