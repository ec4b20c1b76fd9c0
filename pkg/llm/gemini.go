package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

// GeminiGateway implements Gateway against Google's Gemini API.
type GeminiGateway struct {
	client *genai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewGeminiGateway builds a Gemini-backed gateway.
func NewGeminiGateway(ctx context.Context, cfg Config) (*GeminiGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	cfg = normalizeConfig(cfg, "gemini-2.0-flash")

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiGateway{
		client: client,
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/cefr-placement-api/pkg/llm/gemini"),
		logger: cfg.Logger.With().Str("component", "gemini_gateway").Logger(),
	}, nil
}

// Send submits prompt and returns the reply text.
func (g *GeminiGateway) Send(ctx context.Context, prompt string) (string, error) {
	return g.generate(ctx, "gemini.send", prompt, g.baseConfig())
}

// GenerateStructured requests a JSON reply, passing schemaHint as system instruction.
func (g *GeminiGateway) GenerateStructured(ctx context.Context, prompt, schemaHint string) (string, error) {
	config := g.baseConfig()
	config.ResponseMIMEType = "application/json"
	if strings.TrimSpace(schemaHint) != "" {
		config.SystemInstruction = genai.NewContentFromText(schemaHint, genai.RoleUser)
	}
	return g.generate(ctx, "gemini.generate_structured", prompt, config)
}

func (g *GeminiGateway) baseConfig() *genai.GenerateContentConfig {
	temperature := g.cfg.Temperature
	return &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	}
}

func (g *GeminiGateway) generate(parent context.Context, spanName, prompt string, config *genai.GenerateContentConfig) (string, error) {
	ctx, span := g.tracer.Start(parent, spanName, trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, genai.Text(prompt), config)
	observe(ProviderGemini, g.cfg.Model, start)
	if err != nil {
		recordFailure(span, ProviderGemini, g.cfg.Model, err)
		return "", fmt.Errorf("%w: gemini generate content: %w", ErrLLM, err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		err := fmt.Errorf("%w: empty response from gemini", ErrLLM)
		recordFailure(span, ProviderGemini, g.cfg.Model, err)
		return "", err
	}

	g.logger.Debug().Str("model", g.cfg.Model).Msg("gemini completion received")
	return text, nil
}
