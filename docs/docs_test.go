package docs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestSwaggerDocRenders(t *testing.T) {
	doc, err := swag.ReadDoc()
	require.NoError(t, err)

	var parsed struct {
		Info struct {
			Title string `json:"title"`
		} `json:"info"`
		BasePath string                 `json:"basePath"`
		Paths    map[string]interface{} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))

	assert.Equal(t, "Refinement Engine API", parsed.Info.Title)
	assert.Equal(t, "/api", parsed.BasePath)
	assert.Contains(t, parsed.Paths, "/workflows/{id}/phases/{phaseId}/refinements")
	assert.Contains(t, parsed.Paths, "/executions/{id}")
}
