package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/apperrors"
)

// OpenAIGenerator produces SQL through any OpenAI-compatible chat endpoint.
type OpenAIGenerator struct {
	client  *openai.Client
	model   string
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// Config holds provider settings shared by all generator implementations.
type Config struct {
	Endpoint string // base URL, e.g. "https://api.openai.com/v1"
	Model    string
	APIKey   string // optional for local endpoints
}

// NewOpenAIGenerator creates a client for an OpenAI-compatible endpoint.
func NewOpenAIGenerator(cfg Config, logger *zap.Logger) (*OpenAIGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = strings.TrimSuffix(cfg.Endpoint, "/")
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:  logger.Named("generator"),
	}, nil
}

// Generate sends the rendered prompt and classifies the response.
// Temperature is pinned to zero for deterministic SQL.
func (g *OpenAIGenerator) Generate(ctx context.Context, pc PromptContext) (Outcome, error) {
	if err := g.breaker.Allow(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrGeneratorFailure, err)
	}

	prompt := buildPrompt(pc)

	g.logger.Debug("Generation request",
		zap.String("model", g.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0,
	})
	if err != nil {
		g.breaker.RecordFailure()
		g.logger.Error("Generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrGeneratorFailure, err)
	}
	if len(resp.Choices) == 0 {
		g.breaker.RecordFailure()
		return Outcome{}, fmt.Errorf("%w: no choices in response", apperrors.ErrGeneratorFailure)
	}

	g.breaker.RecordSuccess()

	g.logger.Info("Generation completed",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.Duration("elapsed", time.Since(start)))

	return classifyResponse(resp.Choices[0].Message.Content), nil
}

var _ Generator = (*OpenAIGenerator)(nil)
