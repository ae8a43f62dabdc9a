package tools

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/agents"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
)

// RegisterFileTools adds the file-coordination tool group (spec.md §4.D)
// to reg, backed by mgr's claim table.
func RegisterFileTools(reg *mcp.Registry, mgr *agents.Manager) {
	reg.Register(mcp.Tool{
		Name:        "claim_file",
		Description: "Claim a file path for exclusive editing, if not already held.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"file_path": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := requiredStringArg(args, "file_path")
			if err != nil {
				return nil, err
			}
			return mgr.ClaimFile(ctx, callerAgentID(ctx), path)
		},
	})

	reg.Register(mcp.Tool{
		Name:        "release_file",
		Description: "Release a file claim held by the caller, or by any agent if the caller is admin.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"file_path": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := requiredStringArg(args, "file_path")
			if err != nil {
				return nil, err
			}
			if err := mgr.ReleaseFile(ctx, callerRole(ctx), callerAgentID(ctx), path); err != nil {
				return nil, err
			}
			return map[string]any{"released": true}, nil
		},
	})

	reg.Register(mcp.Tool{
		Name:        "get_file_metadata",
		Description: "Return the current claim, if any, for a file path.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"file_path": {Type: mcp.TypeString, Required: true},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			path, err := requiredStringArg(args, "file_path")
			if err != nil {
				return nil, err
			}
			claim, ok, err := mgr.FileMetadata(ctx, path)
			if err != nil {
				return nil, err
			}
			if !ok {
				return map[string]any{"claimed": false}, nil
			}
			return map[string]any{"claimed": true, "agent_id": claim.AgentID, "claimed_at": claim.ClaimedAt}, nil
		},
	})
}
