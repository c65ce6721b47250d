package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

// setupEnv points the CLI at a temporary SQLite file and a fake model runtime
func setupEnv(t *testing.T, runtime http.Handler) {
	t.Helper()
	srv := httptest.NewServer(runtime)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "refine.db"))
	t.Setenv("MODEL_RUNTIME_URL", srv.URL)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func runtimeReplying(output string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/invoke" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"output": output})
	})
}

func TestRefineEndToEnd(t *testing.T) {
	const refined = "Your thesis is clear. Add one example from chapter two to support it."
	setupEnv(t, runtimeReplying(refined))

	out, err := execute(t, "", "seed", "--file", "../../deploy/seed.example.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 3 models, 1 workflows, 1 phases, 4 actions, 3 prompts")

	out, err = execute(t, "The essay is good but could use more detail.",
		"refine", "--workflow", "wf-essay-feedback", "--phase", "ph-feedback-draft",
		"--file", "-", "--max-iterations", "1")
	require.NoError(t, err)

	var result models.RefineResponse
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "refined", result.Outcome)
	assert.Equal(t, refined, result.RefinedResponse)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, "max_iterations", result.StopReason)
	require.NotEmpty(t, result.ExecutionID)

	out, err = execute(t, "", "executions", "show", result.ExecutionID)
	require.NoError(t, err)

	var detail models.ExecutionDetail
	require.NoError(t, json.Unmarshal([]byte(out), &detail))
	assert.Equal(t, "wf-essay-feedback", detail.Execution.WorkflowID)
	require.NotNil(t, detail.Execution.FinalOutput)
	assert.Equal(t, refined, *detail.Execution.FinalOutput)
	require.Len(t, detail.Responses, 1)
	assert.Equal(t, "gpt-4o-mini", detail.Responses[0].ModelName)
	assert.Equal(t, 1, detail.Responses[0].Iteration)
}

func TestRefineInvalidInput(t *testing.T) {
	setupEnv(t, runtimeReplying("unused"))

	out, err := execute(t, "", "refine", "--workflow", "wf", "--phase", "ph", "--response", "short")
	require.NoError(t, err)

	var result models.RefineResponse
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "invalid_input", result.Outcome)
	assert.Empty(t, result.ExecutionID)
}

func TestRefineRequiresResponseSource(t *testing.T) {
	setupEnv(t, runtimeReplying("unused"))

	_, err := execute(t, "", "refine", "--workflow", "wf", "--phase", "ph")
	assert.Error(t, err)

	_, err = execute(t, "", "refine", "--workflow", "wf", "--phase", "ph",
		"--response", "some long response", "--file", "-")
	assert.Error(t, err)
}

func TestUserCreate(t *testing.T) {
	setupEnv(t, runtimeReplying("unused"))

	out, err := execute(t, "", "user", "create", "--name", "Ada", "--email", "Ada@Example.com", "--password", "engine1843")
	require.NoError(t, err)
	assert.Contains(t, out, "Created user")

	_, err = execute(t, "", "user", "create", "--name", "Ada", "--email", "ada@example.com", "--password", "short")
	assert.ErrorContains(t, err, "validation error")
}

func TestExecutionsShowUnknown(t *testing.T) {
	setupEnv(t, runtimeReplying("unused"))

	_, err := execute(t, "", "executions", "show", "not-a-uuid")
	assert.ErrorContains(t, err, "invalid execution ID")

	_, err = execute(t, "", "executions", "show", "6f1c1b1e-8f7a-4c1e-9a55-0d6f5c1d2e3f")
	assert.ErrorContains(t, err, "not found")
}

func TestReadResponseFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "response.txt")
	require.NoError(t, os.WriteFile(path, []byte("from a file on disk"), 0o600))

	root := newRootCmd(io.Discard)
	text, err := readResponse(root, "", path)
	require.NoError(t, err)
	assert.Equal(t, "from a file on disk", text)

	text, err = readResponse(root, "inline", "")
	require.NoError(t, err)
	assert.Equal(t, "inline", text)
}
