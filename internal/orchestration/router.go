package orchestration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// ErrNoInvoker is returned when no invoker matches a model name
var ErrNoInvoker = errors.New("no invoker for model")

type route struct {
	prefix  string
	invoker ModelInvoker
}

// Router dispatches to an invoker by model name prefix.
// The longest matching prefix wins; unmatched names go to the fallback.
type Router struct {
	routes   []route
	fallback ModelInvoker
}

// NewRouter creates a router. fallback may be nil.
func NewRouter(fallback ModelInvoker) *Router {
	return &Router{fallback: fallback}
}

// Handle registers an invoker for model names starting with prefix
func (r *Router) Handle(prefix string, invoker ModelInvoker) {
	r.routes = append(r.routes, route{prefix: prefix, invoker: invoker})
}

// Resolve returns the invoker serving modelName
func (r *Router) Resolve(modelName string) (ModelInvoker, error) {
	var best *route
	for i := range r.routes {
		rt := &r.routes[i]
		if strings.HasPrefix(modelName, rt.prefix) && (best == nil || len(rt.prefix) > len(best.prefix)) {
			best = rt
		}
	}
	if best != nil {
		return best.invoker, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w %q", ErrNoInvoker, modelName)
}

// IsHealthy probes the fallback, which serves every unclaimed model name.
// Hosted providers are not probed.
func (r *Router) IsHealthy(ctx context.Context) bool {
	if r.fallback == nil {
		return true
	}
	return Healthy(ctx, r.fallback)
}

// Invoke implements ModelInvoker
func (r *Router) Invoke(ctx context.Context, prompt, modelName string) (models.Completion, error) {
	invoker, err := r.Resolve(modelName)
	if err != nil {
		return models.Completion{}, err
	}
	return invoker.Invoke(ctx, prompt, modelName)
}
