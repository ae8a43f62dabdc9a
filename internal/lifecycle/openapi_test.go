package lifecycle

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

func TestOpenAPIHandlerListsRegisteredTools(t *testing.T) {
	reg := mcp.NewRegistry()
	reg.Register(mcp.Tool{
		Name:        "create_task",
		Description: "Create a task.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"task_id": {Type: mcp.TypeString, Required: true},
			"title":   {Type: mcp.TypeString, Required: true},
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/openapi.json", nil)
	rec := httptest.NewRecorder()
	OpenAPIHandler(reg, "0.1.0")(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, paths, "/rpc")
}

func TestDocsHandlerServesHTML(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/docs", nil)
	rec := httptest.NewRecorder()
	DocsHandler()(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
}
