// CLAUDE:SUMMARY Registers surgeon_put/get/apply/rollback/clear_audit MCP tools via kit.RegisterMCPTool.
package surgery

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/surgeon/kit"
)

// RegisterMCP registers the surgeon tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	docID := map[string]any{"type": "string", "description": "Document id"}
	logged := func(op string, ep kit.Endpoint) kit.Endpoint {
		return kit.Chain(kit.Logging(s.logger, op), kit.Recover(s.logger))(ep)
	}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "surgeon_put",
		Description: "Store HTML markup under a document id, replacing any previous version.",
		InputSchema: kit.InputSchema(map[string]any{
			"document_id": docID,
			"markup":      map[string]any{"type": "string", "description": "HTML markup"},
			"full":        map[string]any{"type": "boolean", "description": "Parse as a full document rather than a body fragment"},
		}, "document_id", "markup"),
	}, logged("surgeon_put", func(ctx context.Context, req any) (any, error) {
		return s.Put(ctx, req.(*PutRequest))
	}), kit.DecodeJSON[PutRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "surgeon_get",
		Description: "Return a stored document with its markup, including audit attributes.",
		InputSchema: kit.InputSchema(map[string]any{"document_id": docID}, "document_id"),
	}, logged("surgeon_get", func(ctx context.Context, req any) (any, error) {
		return s.Get(ctx, req.(*docRequest).DocumentID)
	}), kit.DecodeJSON[docRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name: "surgeon_apply",
		Description: "Select nodes with a CSS or XPath selector and apply a chain of changes " +
			"(add_css_class, replace_tag_name, remove_attribute) as one audited change set.",
		InputSchema: kit.InputSchema(map[string]any{
			"document_id":   docID,
			"selector":      map[string]any{"type": "string", "description": "CSS selector or XPath expression"},
			"mode":          map[string]any{"type": "string", "enum": []string{"css", "xpath"}},
			"change_set_id": map[string]any{"type": "string", "description": "Optional change-set id; random when empty"},
			"changes": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"type": map[string]any{"type": "string"},
						"arg":  map[string]any{"type": "string"},
					},
					"required": []string{"type", "arg"},
				},
			},
			"select": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "CSS filters a node must match"},
			"reject": map[string]any{"type": "array", "items": map[string]any{"type": "string"}, "description": "CSS filters a node must not match"},
		}, "document_id", "selector", "changes"),
	}, logged("surgeon_apply", func(ctx context.Context, req any) (any, error) {
		return s.Apply(ctx, req.(*ApplyRequest))
	}), kit.DecodeJSON[ApplyRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "surgeon_rollback",
		Description: "Revert audited changes of a document, optionally restricted by change set and time.",
		InputSchema: kit.InputSchema(map[string]any{
			"document_id":   docID,
			"change_set_id": map[string]any{"type": "string"},
			"changed_at":    map[string]any{"type": "string", "description": "RFC 3339 instant, exact match"},
			"changed_from":  map[string]any{"type": "string", "description": "RFC 3339 instant, inclusive lower bound"},
		}, "document_id"),
	}, logged("surgeon_rollback", func(ctx context.Context, req any) (any, error) {
		return s.Rollback(ctx, req.(*RollbackRequest))
	}), kit.DecodeJSON[RollbackRequest]())

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "surgeon_clear_audit",
		Description: "Drop every audit trail of a document without reverting the changes.",
		InputSchema: kit.InputSchema(map[string]any{"document_id": docID}, "document_id"),
	}, logged("surgeon_clear_audit", func(ctx context.Context, req any) (any, error) {
		return s.ClearAudit(ctx, req.(*docRequest).DocumentID)
	}), kit.DecodeJSON[docRequest]())
}

type docRequest struct {
	DocumentID string `json:"document_id"`
}
