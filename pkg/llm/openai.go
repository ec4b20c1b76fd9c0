package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAIGateway implements Gateway against the OpenAI chat completion API.
type OpenAIGateway struct {
	client *openai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIGateway builds a gateway using the provided configuration.
func NewOpenAIGateway(cfg Config) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	cfg = normalizeConfig(cfg, "gpt-4o-mini")

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIGateway{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/cefr-placement-api/pkg/llm/openai"),
		logger: cfg.Logger.With().Str("component", "openai_gateway").Logger(),
	}, nil
}

// Send submits prompt as a single user message and returns the reply text.
func (g *OpenAIGateway) Send(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{
		{Role: openai.ChatMessageRoleUser, Content: prompt},
	}
	return g.complete(ctx, "openai.send", messages, nil)
}

// GenerateStructured asks for a JSON object, passing schemaHint as the system message.
func (g *OpenAIGateway) GenerateStructured(ctx context.Context, prompt, schemaHint string) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if strings.TrimSpace(schemaHint) != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: schemaHint,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	format := &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	return g.complete(ctx, "openai.generate_structured", messages, format)
}

func (g *OpenAIGateway) complete(parent context.Context, spanName string, messages []openai.ChatCompletionMessage, format *openai.ChatCompletionResponseFormat) (string, error) {
	ctx, span := g.tracer.Start(parent, spanName, trace.WithAttributes(
		attribute.String("model", g.cfg.Model),
	))
	defer span.End()

	ctx, cancel := withTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	request := openai.ChatCompletionRequest{
		Model:          g.cfg.Model,
		MaxTokens:      g.cfg.MaxTokens,
		Temperature:    g.cfg.Temperature,
		Messages:       messages,
		ResponseFormat: format,
	}

	start := time.Now()
	resp, err := g.client.CreateChatCompletion(ctx, request)
	observe(ProviderOpenAI, g.cfg.Model, start)
	if err != nil {
		recordFailure(span, ProviderOpenAI, g.cfg.Model, err)
		return "", fmt.Errorf("%w: openai chat completion: %w", ErrLLM, err)
	}

	if len(resp.Choices) == 0 {
		err := fmt.Errorf("%w: no choices returned from openai", ErrLLM)
		recordFailure(span, ProviderOpenAI, g.cfg.Model, err)
		return "", err
	}

	g.logger.Debug().
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("openai completion received")

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
