package refinement

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLengthScorer_Score(t *testing.T) {
	tests := []struct {
		name     string
		scorer   LengthScorer
		text     string
		expected float64
	}{
		{name: "capped", scorer: LengthScorer{Divisor: 500}, text: strings.Repeat("a", 1000), expected: 1.0},
		{name: "proportional", scorer: LengthScorer{Divisor: 500}, text: strings.Repeat("a", 100), expected: 0.2},
		{name: "exact_divisor", scorer: LengthScorer{Divisor: 500}, text: strings.Repeat("a", 500), expected: 1.0},
		{name: "empty", scorer: LengthScorer{Divisor: 500}, text: "", expected: 0},
		{name: "code_points", scorer: LengthScorer{Divisor: 500}, text: strings.Repeat("é", 250), expected: 0.5},
		{name: "zero_divisor_uses_default", scorer: LengthScorer{}, text: strings.Repeat("a", 50), expected: 0.1},
		{name: "custom_divisor", scorer: LengthScorer{Divisor: 10}, text: "abcde", expected: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, tt.scorer.Score(tt.text), 1e-9)
		})
	}
}

func TestRenderPrompt(t *testing.T) {
	assert.Equal(t, "Rewrite: draft text. Again: draft text", RenderPrompt("Rewrite: {response}. Again: {response}", "draft text"))
	assert.Equal(t, "No placeholder", RenderPrompt("No placeholder", "draft text"))
}
