package exportbridge

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContractSchemas(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteContractSchemas(&buf))

	var decoded map[string]struct {
		Title      string                     `json:"title"`
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	request := decoded["request"]
	assert.Equal(t, "ExportRequest", request.Title)
	assert.Contains(t, request.Required, "sourceFilePath")
	assert.Contains(t, request.Required, "exportKind")
	assert.NotContains(t, request.Required, "revision")
	assert.Contains(t, string(request.Properties["exportKind"]), `"pdf"`)

	result := decoded["result"]
	assert.Equal(t, "ExportResult", result.Title)
	for _, field := range []string{"success", "outputPath", "fileName", "fileSize", "error"} {
		assert.Contains(t, result.Properties, field)
	}
}
