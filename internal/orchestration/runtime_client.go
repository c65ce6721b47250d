package orchestration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// RuntimeClient invokes models hosted behind a self-managed model runtime
type RuntimeClient struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

// RuntimeInvokeRequest is the body of POST /v1/invoke
type RuntimeInvokeRequest struct {
	TraceID  string    `json:"trace_id"`
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// Message represents a chat message sent to the runtime
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RuntimeInvokeResponse carries the runtime output, either a string or a list of strings
type RuntimeInvokeResponse struct {
	Output json.RawMessage `json:"output"`
	Model  string          `json:"model,omitempty"`
}

// NewRuntimeClient creates a runtime client guarded by a circuit breaker
func NewRuntimeClient(baseURL string, timeout time.Duration, logger *zap.Logger) *RuntimeClient {
	settings := gobreaker.Settings{
		Name:        "model-runtime",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	return &RuntimeClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		tracer:  otel.Tracer("model-runtime-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Invoke runs a prompt against the runtime-hosted model
func (c *RuntimeClient) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	ctx, span := c.tracer.Start(ctx, "model_runtime.invoke")
	defer span.End()

	req := RuntimeInvokeRequest{
		TraceID: uuid.New().String(),
		Model:   modelName,
		Messages: []Message{
			{Role: "user", Content: prompt},
		},
	}
	span.SetAttributes(
		attribute.String("model", modelName),
		attribute.String("trace_id", req.TraceID),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.invokeInternal(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return models.Completion{}, fmt.Errorf("failed to invoke model runtime: %w", err)
	}

	completion := result.(models.Completion)
	span.SetAttributes(attribute.Int("completion.parts", len(completion.Parts)))

	return completion, nil
}

// invokeInternal performs the actual HTTP request
func (c *RuntimeClient) invokeInternal(ctx context.Context, req RuntimeInvokeRequest) (models.Completion, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/invoke", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")

	// Inject trace context
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return models.Completion{}, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err != nil {
			return models.Completion{}, fmt.Errorf("model runtime returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return models.Completion{}, fmt.Errorf("model runtime returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var invokeResp RuntimeInvokeResponse
	if err := json.NewDecoder(resp.Body).Decode(&invokeResp); err != nil {
		return models.Completion{}, fmt.Errorf("failed to decode response: %w", err)
	}

	return decodeOutput(invokeResp.Output)
}

// decodeOutput accepts either "text" or ["part", "part"]
func decodeOutput(raw json.RawMessage) (models.Completion, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Completion{}, nil
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		return models.NewCompletion(single), nil
	}

	var parts []string
	if err := json.Unmarshal(raw, &parts); err != nil {
		return models.Completion{}, fmt.Errorf("failed to decode output: expected string or list of strings")
	}

	return models.Completion{Parts: parts}, nil
}

// IsHealthy checks if the model runtime is healthy
func (c *RuntimeClient) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "model_runtime.health_check")
	defer span.End()

	// Use circuit breaker state as a quick health indicator
	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	// Short timeout for health checks
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))

	return healthy
}
