package tools

import (
	"context"

	"github.com/conclave-mcp/orchestrator/internal/apperrors"
	"github.com/conclave-mcp/orchestrator/internal/domain"
	"github.com/conclave-mcp/orchestrator/internal/mcp"
	"github.com/conclave-mcp/orchestrator/internal/rag"
)

func ragDisabledError() error {
	return apperrors.New(apperrors.Unavailable, "RAG is disabled: RAG_ENABLED is false")
}

// RegisterKnowledgeTools adds the knowledge tool group (spec.md §4.D) to
// reg, backed by engine. engine is nil when RAG_ENABLED is false —
// ask_project_rag then returns Unavailable instead of panicking. Missing
// provider credentials do not produce a nil engine.
func RegisterKnowledgeTools(reg *mcp.Registry, engine *rag.Engine) {
	reg.Register(mcp.Tool{
		Name:        "ask_project_rag",
		Description: "Answer a question from the indexed project knowledge base.",
		InputSchema: mcp.Schema{Fields: map[string]mcp.Field{
			"query":  {Type: mcp.TypeString, Required: true},
			"top_k":  {Type: mcp.TypeInteger},
			"filter": {Type: mcp.TypeString},
		}},
		Handler: func(ctx context.Context, args map[string]any) (any, error) {
			if engine == nil {
				return nil, ragDisabledError()
			}
			query, err := requiredStringArg(args, "query")
			if err != nil {
				return nil, err
			}
			return engine.Ask(ctx, query, intArg(args, "top_k", rag.DefaultTopK), domain.SourceType(stringArg(args, "filter")))
		},
	})
}
