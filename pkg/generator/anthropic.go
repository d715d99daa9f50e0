package generator

import (
	"context"
	"fmt"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
	"go.uber.org/zap"

	"github.com/queryshield/queryshield-engine/pkg/apperrors"
)

// AnthropicGenerator produces SQL through the Anthropic Messages API.
type AnthropicGenerator struct {
	client  *anthropic.Client
	model   string
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewAnthropicGenerator creates an Anthropic-backed generator.
func NewAnthropicGenerator(cfg Config, logger *zap.Logger) (*AnthropicGenerator, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}

	var opts []anthropic.ClientOption
	if cfg.Endpoint != "" {
		opts = append(opts, anthropic.WithBaseURL(cfg.Endpoint))
	}

	return &AnthropicGenerator{
		client:  anthropic.NewClient(cfg.APIKey, opts...),
		model:   cfg.Model,
		breaker: NewCircuitBreaker(DefaultCircuitBreakerConfig()),
		logger:  logger.Named("generator"),
	}, nil
}

// Generate sends the rendered prompt and classifies the response.
func (g *AnthropicGenerator) Generate(ctx context.Context, pc PromptContext) (Outcome, error) {
	if err := g.breaker.Allow(); err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrGeneratorFailure, err)
	}

	prompt := buildPrompt(pc)

	g.logger.Debug("Generation request",
		zap.String("model", g.model),
		zap.Int("prompt_len", len(prompt)))

	start := time.Now()

	resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:     anthropic.Model(g.model),
		System:    systemMessage,
		MaxTokens: 1024,
		Messages: []anthropic.Message{
			anthropic.NewUserTextMessage(prompt),
		},
	})
	if err != nil {
		g.breaker.RecordFailure()
		g.logger.Error("Generation request failed",
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return Outcome{}, fmt.Errorf("%w: %w", apperrors.ErrGeneratorFailure, err)
	}

	text := firstTextBlock(resp)
	if text == "" {
		g.breaker.RecordFailure()
		return Outcome{}, fmt.Errorf("%w: no text content in response", apperrors.ErrGeneratorFailure)
	}

	g.breaker.RecordSuccess()

	g.logger.Info("Generation completed",
		zap.Duration("elapsed", time.Since(start)))

	return classifyResponse(text), nil
}

func firstTextBlock(resp anthropic.MessagesResponse) string {
	for _, block := range resp.Content {
		if block.Type == anthropic.MessagesContentTypeText && block.Text != nil {
			return *block.Text
		}
	}
	return ""
}

var _ Generator = (*AnthropicGenerator)(nil)
