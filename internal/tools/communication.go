package tools

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

// RegisterCommunicationTools adds the inter-agent communication tool
// group (spec.md §4.D) to reg, backed by mgr's message store.
func RegisterCommunicationTools(reg *mcp.Registry, mgr *agents.Manager) {
	reg.Register(mcp.Tool{
		Name:        "send_agent_message",
		Description: "Send a point-to-point message to another agent.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"to_agent": {Type: mcp.TypeString, Required: true},
			"payload":  {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			toAgent, err := requiredStringArg(args, "to_agent")
			if err != nil {
				return nil, err
			}
			payload, err := requiredStringArg(args, "payload")
			if err != nil {
				return nil, err
			}
			return mgr.SendMessage(ctx, callerAgentID(ctx), toAgent, payload)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "broadcast_message",
		Description: "Send a message to every agent.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"payload": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			payload, err := requiredStringArg(args, "payload")
			if err != nil {
				return nil, err
			}
			return mgr.BroadcastMessage(ctx, callerAgentID(ctx), payload)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "get_agent_messages",
		Description: "List messages addressed to the caller (including broadcasts) since a sequence cursor.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"since": {Type: mcp.TypeInteger},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return mgr.Messages(ctx, callerAgentID(ctx), intArg(args, "since", -1))
		},
	})
}
