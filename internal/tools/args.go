// Package tools registers every MCP tool spec.md §4.D's six groups name
// (agent management, task management, context, knowledge, communication,
// file coordination) into a mcp.Registry, wiring each handler to the
// manager package that owns its state.
package tools

import (
	"github.com/conclave-mcp/orchestrator/internal/apperrors"
)

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func requiredStringArg(args map[string]any, name string) (string, error) {
	v := stringArg(args, name)
	if v == "" {
		return "", apperrors.FieldError(name, "required")
	}
	return v, nil
}

func optionalStringPtr(args map[string]any, name string) *string {
	v, ok := args[name].(string)
	if !ok || v == "" {
		return nil
	}
	return &v
}

func stringSliceArg(args map[string]any, name string) []string {
	raw, ok := args[name].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mapArg(args map[string]any, name string) map[string]any {
	v, _ := args[name].(map[string]any)
	return v
}

func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

func boolArg(args map[string]any, name string, def bool) bool {
	if v, ok := args[name].(bool); ok {
		return v
	}
	return def
}
