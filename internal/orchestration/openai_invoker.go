package orchestration

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// OpenAIInvoker runs prompts through the OpenAI chat completions API
type OpenAIInvoker struct {
	client *openai.Client
	tracer trace.Tracer
}

// NewOpenAIInvoker creates an invoker for OpenAI-compatible endpoints.
// An empty baseURL keeps the public API endpoint.
func NewOpenAIInvoker(apiKey, baseURL string) (*OpenAIInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}

	return &OpenAIInvoker{
		client: openai.NewClientWithConfig(config),
		tracer: otel.Tracer("openai-invoker"),
	}, nil
}

// Invoke returns one completion part per choice
func (i *OpenAIInvoker) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	ctx, span := i.tracer.Start(ctx, "openai.chat_completion")
	defer span.End()

	span.SetAttributes(attribute.String("model", modelName))

	resp, err := i.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: modelName,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		span.RecordError(err)
		return models.Completion{}, fmt.Errorf("failed to create chat completion: %w", err)
	}

	parts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		parts = append(parts, choice.Message.Content)
	}
	span.SetAttributes(
		attribute.Int("completion.parts", len(parts)),
		attribute.Int("usage.total_tokens", resp.Usage.TotalTokens),
	)

	return models.Completion{Parts: parts}, nil
}
