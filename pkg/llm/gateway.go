// Package llm isolates the calls to the grading language model behind a small
// Gateway interface with OpenAI and Gemini implementations.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported providers.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

const defaultTemperature float32 = 0.7

// ErrLLM marks any failure talking to the language model.
var ErrLLM = errors.New("llm request failed")

// Gateway sends rendered prompts to a language model and returns its raw text.
// Callers must validate the output: temperature is non-zero so responses vary.
type Gateway interface {
	Send(ctx context.Context, prompt string) (string, error)
	GenerateStructured(ctx context.Context, prompt, schemaHint string) (string, error)
}

// Config holds the options shared by every provider.
type Config struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	MaxTokens   int
	// Timeout bounds a single call. Zero leaves the call unbounded.
	Timeout time.Duration
	Logger  zerolog.Logger
}

// New returns the gateway for cfg.Provider.
func New(ctx context.Context, cfg Config) (Gateway, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderOpenAI:
		return NewOpenAIGateway(cfg)
	case ProviderGemini:
		return NewGeminiGateway(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

// InvalidResponseError reports model output that could not be parsed or did not
// match the expected shape. It matches ErrLLM with errors.Is.
type InvalidResponseError struct {
	Raw    string
	Reason string
	Keys   []string
	Err    error
}

// NewInvalidResponseError builds an InvalidResponseError.
func NewInvalidResponseError(raw, reason string, cause error) *InvalidResponseError {
	return &InvalidResponseError{Raw: raw, Reason: reason, Err: cause}
}

func (e *InvalidResponseError) Error() string {
	var builder strings.Builder
	builder.WriteString("invalid llm response: ")
	builder.WriteString(e.Reason)
	if len(e.Keys) > 0 {
		builder.WriteString(" (keys found: ")
		builder.WriteString(strings.Join(e.Keys, ", "))
		builder.WriteString(")")
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *InvalidResponseError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrLLM) succeed for malformed output.
func (e *InvalidResponseError) Is(target error) bool {
	return target == ErrLLM
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func normalizeConfig(cfg Config, defaultModel string) Config {
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Logger.GetLevel() == zerolog.Disabled {
		cfg.Logger = zerolog.Nop()
	}
	return cfg
}
