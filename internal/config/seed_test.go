package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bizmatters/agent-builder/refinement-engine/internal/models"
)

func TestLoadSeedFile_Example(t *testing.T) {
	seed, err := LoadSeedFile("../../deploy/seed.example.yaml")
	require.NoError(t, err)

	assert.Len(t, seed.Models, 3)
	require.Len(t, seed.Workflows, 1)
	require.Len(t, seed.Workflows[0].Phases, 1)
	assert.Len(t, seed.Workflows[0].Phases[0].Actions, 4)
	require.Len(t, seed.Prompts, 3)
	for _, p := range seed.Prompts {
		assert.Equal(t, models.PromptCategoryRefinement, p.Category)
		assert.Contains(t, p.Template, "{response}")
	}
}

func TestLoadSeedFile_Missing(t *testing.T) {
	_, err := LoadSeedFile("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestParseSeed_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		contains string
	}{
		{
			name:     "unknown_field",
			yaml:     "models:\n  - id: m\n    name: n\n    flavour: x\n",
			contains: "flavour",
		},
		{
			name: "unknown_model",
			yaml: `
models:
  - {id: m1, name: gpt-4o-mini}
workflows:
  - id: wf
    use_case_id: uc
    ai_model_id: m2
`,
			contains: `unknown model "m2"`,
		},
		{
			name: "iteration_zero",
			yaml: `
models:
  - {id: m1, name: gpt-4o-mini}
workflows:
  - id: wf
    use_case_id: uc
    ai_model_id: m1
    phases:
      - id: ph
        actions:
          - {name: a, model_id: m1, iteration: 0}
`,
			contains: "iteration must be at least 1",
		},
		{
			name: "missing_placeholder",
			yaml: `
models:
  - {id: m1, name: gpt-4o-mini}
prompts:
  - {use_case_id: uc, model_id: m1, template: "Make it better"}
`,
			contains: "no {response} placeholder",
		},
		{
			name: "duplicate_phase",
			yaml: `
models:
  - {id: m1, name: gpt-4o-mini}
workflows:
  - id: wf
    use_case_id: uc
    ai_model_id: m1
    phases:
      - {id: ph}
      - {id: ph}
`,
			contains: `phase "ph": duplicate id`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseSeed([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestParseSeed_NonRefinementPromptNeedsNoPlaceholder(t *testing.T) {
	seed, err := ParseSeed([]byte(`
models:
  - {id: m1, name: gpt-4o-mini}
prompts:
  - {use_case_id: uc, model_id: m1, category: summary, template: "Summarize"}
`))
	require.NoError(t, err)
	assert.Equal(t, "summary", seed.Prompts[0].Category)
}
