package orchestration

import (
	"context"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// ModelInvoker sends a prompt to a model and returns what it generated
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error)
}

// HealthChecker is implemented by invokers that can probe their backend
type HealthChecker interface {
	IsHealthy(ctx context.Context) bool
}

// Healthy probes invoker when it can be probed and reports true otherwise
func Healthy(ctx context.Context, invoker ModelInvoker) bool {
	if hc, ok := invoker.(HealthChecker); ok {
		return hc.IsHealthy(ctx)
	}
	return true
}

// InvokerFunc adapts a function to ModelInvoker
type InvokerFunc func(ctx context.Context, prompt, modelName string) (models.Completion, error)

// Invoke calls f
func (f InvokerFunc) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	return f(ctx, prompt, modelName)
}
