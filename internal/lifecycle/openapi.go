package lifecycle

import (
	"encoding/json"
	"net/http"
	"sort"

	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

// openAPIDocument is the minimal shape spec.md §6's "/openapi.json for
// machine API description" needs: one path (the JSON-RPC endpoint), with
// every registered tool's schema folded into its own named schema so a
// caller can discover arguments without reading the tool registry source.
type openAPIDocument struct {
	OpenAPI string                    `json:"openapi"`
	Info    openAPIInfo               `json:"info"`
	Paths   map[string]map[string]any `json:"paths"`
}

type openAPIInfo struct {
	Title   string `json:"title"`
	Version string `json:"version"`
}

// OpenAPIHandler renders the tool catalogue registered in reg as an
// OpenAPI 3 document describing the single `tools/call` JSON-RPC path.
func OpenAPIHandler(reg *mcp.Registry, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tools := reg.List()
		sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

		schemas := make(map[string]any, len(tools))
		for _, t := range tools {
			props := make(map[string]any, len(t.InputSchema.Fields))
			required := make([]string, 0, len(t.InputSchema.Fields))
			for name, field := range t.InputSchema.Fields {
				props[name] = map[string]any{"type": jsonSchemaType(field.Type)}
				if field.Required {
					required = append(required, name)
				}
			}
			sort.Strings(required)
			schemas[t.Name] = map[string]any{
				"description": t.Description,
				"type":        "object",
				"properties":  props,
				"required":    required,
			}
		}

		doc := openAPIDocument{
			OpenAPI: "3.0.3",
			Info:    openAPIInfo{Title: "orchestrator MCP server", Version: version},
			Paths: map[string]map[string]any{
				"/rpc": {
					"post": map[string]any{
						"summary": "JSON-RPC 2.0 tools/call and tools/list endpoint",
						"requestBody": map[string]any{
							"content": map[string]any{
								"application/json": map[string]any{
									"schema": map[string]any{"type": "object"},
								},
							},
						},
						"x-tool-schemas": schemas,
					},
				},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}
}

func jsonSchemaType(t mcp.FieldType) string {
	switch t {
	case mcp.TypeString:
		return "string"
	case mcp.TypeNumber:
		return "number"
	case mcp.TypeInteger:
		return "integer"
	case mcp.TypeBoolean:
		return "boolean"
	case mcp.TypeObject:
		return "object"
	case mcp.TypeArray:
		return "array"
	default:
		return "string"
	}
}

const docsPage = `<!DOCTYPE html>
<html>
<head><title>orchestrator MCP server</title></head>
<body>
<h1>orchestrator MCP server</h1>
<p>Tool catalogue: <a href="/openapi.json">/openapi.json</a></p>
<p>Dispatch tools via a JSON-RPC 2.0 POST to <code>/rpc</code>, method <code>tools/call</code>.</p>
</body>
</html>
`

// DocsHandler serves the human-readable landing page spec.md §6 names.
func DocsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(docsPage))
	}
}
