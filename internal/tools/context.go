package tools

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/contextstore"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

// RegisterContextTools adds the project-context tool group (spec.md §4.D)
// to reg, backed by store.
func RegisterContextTools(reg *mcp.Registry, store *contextstore.Store) {
	reg.Register(mcp.Tool{
		Name:        "update_project_context",
		Description: "Write a project context key, appending to its history.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"key":         {Type: mcp.TypeString, Required: true},
			"value":       {Type: mcp.TypeAny, Required: true},
			"description": {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			key, err := requiredStringArg(args, "key")
			if err != nil {
				return nil, err
			}
			return store.Update(ctx, key, args["value"], stringArg(args, "description"), callerAgentID(ctx))
		},
	})

	reg.Register(mcp.Tool{
		Name:        "view_project_context",
		Description: "View one context entry, or every entry when no key is given.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"key": {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return store.View(ctx, stringArg(args, "key"))
		},
	})

	reg.Register(mcp.Tool{
		Name:        "query_project_context",
		Description: "Query context entries by JSONPath (patterns starting with $) or key substring.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"pattern": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			pattern, err := requiredStringArg(args, "pattern")
			if err != nil {
				return nil, err
			}
			return store.Query(ctx, pattern)
		},
	})
}
