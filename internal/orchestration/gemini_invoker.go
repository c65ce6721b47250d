package orchestration

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// GeminiInvoker runs prompts through Google's Gemini API
type GeminiInvoker struct {
	client *genai.Client
	tracer trace.Tracer
}

// NewGeminiInvoker creates a Gemini invoker. An empty baseURL keeps the public endpoint.
func NewGeminiInvoker(ctx context.Context, apiKey, baseURL string) (*GeminiInvoker, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	config := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		config.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiInvoker{
		client: client,
		tracer: otel.Tracer("gemini-invoker"),
	}, nil
}

// Invoke returns one completion part per text part of the first candidate
func (g *GeminiInvoker) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	ctx, span := g.tracer.Start(ctx, "gemini.generate_content")
	defer span.End()

	span.SetAttributes(attribute.String("model", modelName))

	result, err := g.client.Models.GenerateContent(ctx, modelName, genai.Text(prompt), nil)
	if err != nil {
		span.RecordError(err)
		return models.Completion{}, fmt.Errorf("GenAI generate failed: %w", err)
	}

	var parts []string
	if len(result.Candidates) > 0 && result.Candidates[0].Content != nil {
		for _, part := range result.Candidates[0].Content.Parts {
			if part != nil && part.Text != "" {
				parts = append(parts, part.Text)
			}
		}
	}
	span.SetAttributes(attribute.Int("completion.parts", len(parts)))

	return models.Completion{Parts: parts}, nil
}
