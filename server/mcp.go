package server

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/glamwatch/kit"
)

// RegisterMCP registers the read-side tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	svc.registerListCategories(srv)
	svc.registerListSnapshots(srv)
	svc.registerDiffLatest(srv)
	svc.registerRunSummary(srv)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func decodeInto[T any](r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	var p T
	if len(r.Params.Arguments) > 0 {
		if err := json.Unmarshal(r.Params.Arguments, &p); err != nil {
			return nil, err
		}
	}
	return &kit.MCPDecodeResult{Request: &p}, nil
}

func (svc *Service) registerListCategories(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "glam_list_categories",
		Description: "List every Commons category with at least one captured snapshot",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return svc.Categories(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerListSnapshots(srv *mcp.Server) {
	type req struct {
		Category string `json:"category"`
		Limit    int    `json:"limit"`
	}

	tool := &mcp.Tool{
		Name:        "glam_list_snapshots",
		Description: "List snapshot headers for a category, newest first",
		InputSchema: inputSchema(map[string]any{
			"category": map[string]any{"type": "string", "description": "Commons category name"},
			"limit":    map[string]any{"type": "integer", "description": "Max snapshots to return (default 50)"},
		}, []string{"category"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.Snapshots(ctx, p.Category, p.Limit)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerDiffLatest(srv *mcp.Server) {
	type req struct {
		Category string `json:"category"`
	}

	tool := &mcp.Tool{
		Name:        "glam_diff_latest",
		Description: "Diff the two most recent snapshots of a category",
		InputSchema: inputSchema(map[string]any{
			"category": map[string]any{"type": "string", "description": "Commons category name"},
		}, []string{"category"}),
	}

	endpoint := func(ctx context.Context, r any) (any, error) {
		p := r.(*req)
		return svc.DiffLatest(ctx, p.Category)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}

func (svc *Service) registerRunSummary(srv *mcp.Server) {
	type req struct{}

	tool := &mcp.Tool{
		Name:        "glam_run_summary",
		Description: "Fetch the most recent watch run with per-category outcomes",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(ctx context.Context, _ any) (any, error) {
		return svc.LatestRun(ctx)
	}

	kit.RegisterMCPTool(srv, tool, endpoint, decodeInto[req])
}
