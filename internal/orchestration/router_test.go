package orchestration

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

func namedInvoker(name string) ModelInvoker {
	return InvokerFunc(func(ctx context.Context, prompt, modelName string) (models.Completion, error) {
		return models.NewCompletion(name + ":" + modelName), nil
	})
}

func TestRouter_Invoke(t *testing.T) {
	router := NewRouter(namedInvoker("runtime"))
	router.Handle("gpt-", namedInvoker("openai"))
	router.Handle("gpt-4o-audio", namedInvoker("audio"))
	router.Handle("gemini-", namedInvoker("gemini"))

	tests := []struct {
		model    string
		expected string
	}{
		{model: "gpt-4o-mini", expected: "openai:gpt-4o-mini"},
		{model: "gpt-4o-audio-preview", expected: "audio:gpt-4o-audio-preview"},
		{model: "gemini-2.0-flash", expected: "gemini:gemini-2.0-flash"},
		{model: "llama-3-8b", expected: "runtime:llama-3-8b"},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			completion, err := router.Invoke(context.Background(), "prompt", tt.model)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, completion.Text())
		})
	}
}

func TestRouter_NoFallback(t *testing.T) {
	router := NewRouter(nil)
	router.Handle("gpt-", namedInvoker("openai"))

	_, err := router.Invoke(context.Background(), "prompt", "claude-x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoInvoker))
}

func TestRouter_IsHealthy(t *testing.T) {
	newRuntime := func(t *testing.T, status int) *RuntimeClient {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		t.Cleanup(server.Close)
		return newTestRuntimeClient(server.URL)
	}
	plain := InvokerFunc(func(ctx context.Context, prompt, modelName string) (models.Completion, error) {
		return models.Completion{}, nil
	})

	tests := []struct {
		name     string
		invoker  func(t *testing.T) ModelInvoker
		expected bool
	}{
		{name: "no_fallback", invoker: func(t *testing.T) ModelInvoker { return NewRouter(nil) }, expected: true},
		{name: "unprobed_fallback", invoker: func(t *testing.T) ModelInvoker { return NewRouter(plain) }, expected: true},
		{name: "runtime_up", invoker: func(t *testing.T) ModelInvoker { return NewRouter(newRuntime(t, http.StatusOK)) }, expected: true},
		{name: "runtime_down", invoker: func(t *testing.T) ModelInvoker { return NewRouter(newRuntime(t, http.StatusBadGateway)) }, expected: false},
		{
			name: "rate_limited_runtime_down",
			invoker: func(t *testing.T) ModelInvoker {
				return NewRateLimited(NewRouter(newRuntime(t, http.StatusBadGateway)), 10, 1)
			},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Healthy(context.Background(), tt.invoker(t)))
		})
	}
}
