package orchestration

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// RateLimited paces calls to the wrapped invoker
type RateLimited struct {
	next    ModelInvoker
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of rps requests per second.
// A non-positive rps disables pacing and returns next unchanged.
func NewRateLimited(next ModelInvoker, rps float64, burst int) ModelInvoker {
	if rps <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// IsHealthy probes the wrapped invoker
func (r *RateLimited) IsHealthy(ctx context.Context) bool {
	return Healthy(ctx, r.next)
}

// Invoke waits for a token, then calls the wrapped invoker
func (r *RateLimited) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return models.Completion{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return r.next.Invoke(ctx, prompt, modelName)
}
