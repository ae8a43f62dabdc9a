package tools

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

func callerRole(ctx context.Context) string {
	p, ok := mcp.PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.Role
}

func callerAgentID(ctx context.Context) string {
	p, ok := mcp.PrincipalFromContext(ctx)
	if !ok {
		return ""
	}
	return p.AgentID
}

// RegisterAgentTools adds the agent-management tool group (spec.md §4.D)
// to reg, backed by mgr.
func RegisterAgentTools(reg *mcp.Registry, mgr *agents.Manager) {
	reg.Register(mcp.Tool{
		Name:        "create_agent",
		Description: "Register a new agent identity and mint its bearer token.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"agent_id":     {Type: mcp.TypeString, Required: true},
			"capabilities": {Type: mcp.TypeArray},
			"working_dir":  {Type: mcp.TypeString},
			"role":         {Type: mcp.TypeString},
		}},
		RequiredRole: "admin",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			agentID, err := requiredStringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			return mgr.Create(ctx, callerRole(ctx), agents.CreateParams{
				AgentID:      agentID,
				Capabilities: stringSliceArg(args, "capabilities"),
				WorkingDir:   stringArg(args, "working_dir"),
				Role:         stringArg(args, "role"),
			})
		},
	})

	reg.Register(mcp.Tool{
		Name:        "terminate_agent",
		Description: "Terminate an agent, revoking its token and releasing its claims.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"agent_id": {Type: mcp.TypeString, Required: true},
		}},
		RequiredRole: "admin",
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			agentID, err := requiredStringArg(args, "agent_id")
			if err != nil {
				return nil, err
			}
			if err := mgr.Terminate(ctx, callerRole(ctx), agentID); err != nil {
				return nil, err
			}
			return map[string]any{"terminated": true}, nil
		},
	})

	reg.Register(mcp.Tool{
		Name:        "list_agents",
		Description: "List every known agent.",
		InputSchema: mcp.Schema{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return mgr.List(ctx)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "get_agent_tokens",
		Description: "Return the (agent_id, token) pairs visible to the caller.",
		InputSchema: mcp.Schema{},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			p, ok := mcp.PrincipalFromContext(ctx)
			if !ok {
				return nil, apperrors.New(apperrors.Unauthenticated, "missing principal")
			}
			return mgr.Tokens(ctx, p.Role, p.AgentID)
		},
	})
}
