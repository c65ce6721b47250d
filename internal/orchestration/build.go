package orchestration

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Provider model-name prefixes
var (
	OpenAIPrefixes = []string{"gpt-", "o1", "o3", "o4-"}
	GeminiPrefixes = []string{"gemini-"}
)

// InvokerConfig selects and configures model providers
type InvokerConfig struct {
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GeminiAPIKey    string
	ModelRuntimeURL string
	Timeout         time.Duration
	RateLimit       float64
	RateBurst       int
}

// NewInvoker builds a router over every configured provider. Providers
// without credentials are skipped; the model runtime serves every model
// name no other provider claims.
func NewInvoker(ctx context.Context, cfg InvokerConfig, logger *zap.Logger) (ModelInvoker, error) {
	var fallback ModelInvoker
	if cfg.ModelRuntimeURL != "" {
		fallback = NewRuntimeClient(cfg.ModelRuntimeURL, cfg.Timeout, logger)
		logger.Info("Model runtime configured", zap.String("url", cfg.ModelRuntimeURL))
	}
	router := NewRouter(fallback)

	if cfg.OpenAIAPIKey != "" {
		openaiInvoker, err := NewOpenAIInvoker(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI invoker: %w", err)
		}
		for _, prefix := range OpenAIPrefixes {
			router.Handle(prefix, openaiInvoker)
		}
		logger.Info("OpenAI provider configured")
	}

	if cfg.GeminiAPIKey != "" {
		geminiInvoker, err := NewGeminiInvoker(ctx, cfg.GeminiAPIKey, "")
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini invoker: %w", err)
		}
		for _, prefix := range GeminiPrefixes {
			router.Handle(prefix, geminiInvoker)
		}
		logger.Info("Gemini provider configured")
	}

	if fallback == nil && len(router.routes) == 0 {
		return nil, fmt.Errorf("no model provider configured")
	}

	return NewRateLimited(router, cfg.RateLimit, cfg.RateBurst), nil
}
