package orchestration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenAIInvoker_RequiresKey(t *testing.T) {
	_, err := NewOpenAIInvoker("", "")
	require.Error(t, err)
}

func TestOpenAIInvoker_Invoke(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		expectedParts []string
		expectedError string
	}{
		{
			name:          "single_choice",
			status:        http.StatusOK,
			body:          `{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"a sharper draft"},"finish_reason":"stop"}],"usage":{"total_tokens":12}}`,
			expectedParts: []string{"a sharper draft"},
		},
		{
			name:          "multiple_choices",
			status:        http.StatusOK,
			body:          `{"id":"c2","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"part one"}},{"index":1,"message":{"role":"assistant","content":"part two"}}]}`,
			expectedParts: []string{"part one", "part two"},
		},
		{
			name:          "api_error",
			status:        http.StatusTooManyRequests,
			body:          `{"error":{"message":"rate limited","type":"requests"}}`,
			expectedError: "failed to create chat completion",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req map[string]interface{}
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "gpt-4o-mini", req["model"])

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			invoker, err := NewOpenAIInvoker("test-key", server.URL+"/v1")
			require.NoError(t, err)

			completion, err := invoker.Invoke(context.Background(), "make it sharper", "gpt-4o-mini")
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expectedParts, completion.Parts)
		})
	}
}
