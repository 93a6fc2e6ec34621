// CLAUDE:SUMMARY Registers the read-only surfacekeeper MCP tools: lookup, filter, dry-run audit, unresolved codes.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/surfacekeeper/ledger"
)

// RegisterMCP registers the keeper tools on an MCP server.
func (k *Keeper) RegisterMCP(srv *mcp.Server) {
	registerTool(srv, &mcp.Tool{
		Name:        "surfacekeeper_lookup",
		Description: "Get one laminate product record by its product code.",
		InputSchema: inputSchema(map[string]any{
			"code": map[string]any{"type": "string", "description": "Product code, e.g. Y0385"},
		}, []string{"code"}),
	}, k.mcpLookup)

	registerTool(srv, &mcp.Tool{
		Name:        "surfacekeeper_filter",
		Description: "List product records matching every field=value filter. Field names accept alias spellings.",
		InputSchema: inputSchema(map[string]any{
			"filters": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "string"},
				"description":          "Field to value, e.g. {\"colors\": \"Brown\"}",
			},
		}, []string{"filters"}),
	}, k.mcpFilter)

	registerTool(srv, &mcp.Tool{
		Name:        "surfacekeeper_audit",
		Description: "Check every stored product code and report what a repair would change. The index is not modified.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, k.mcpAudit)

	registerTool(srv, &mcp.Tool{
		Name:        "surfacekeeper_unresolved",
		Description: "List the codes the most recent run could not resolve.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}, k.mcpUnresolved)
}

type lookupRequest struct {
	Code string `json:"code"`
}

func (k *Keeper) mcpLookup(_ context.Context, r *lookupRequest) (any, error) {
	if r.Code == "" {
		return nil, errors.New("code is required")
	}
	rec, ok := k.Lookup(r.Code)
	if !ok {
		return nil, fmt.Errorf("product %s not found", r.Code)
	}
	return rec, nil
}

type filterRequest struct {
	Filters map[string]string `json:"filters"`
}

func (k *Keeper) mcpFilter(_ context.Context, r *filterRequest) (any, error) {
	if len(r.Filters) == 0 {
		return nil, errors.New("filters is required")
	}
	return k.Filter(r.Filters), nil
}

type emptyRequest struct{}

func (k *Keeper) mcpAudit(ctx context.Context, _ *emptyRequest) (any, error) {
	res, err := k.Audit(ctx, false)
	if err != nil {
		return nil, err
	}
	return res.Report, nil
}

func (k *Keeper) mcpUnresolved(ctx context.Context, _ *emptyRequest) (any, error) {
	run, us, err := k.LatestUnresolved(ctx)
	if errors.Is(err, ErrNoLedger) || errors.Is(err, ledger.ErrNoRuns) {
		return map[string]any{"run": nil, "unresolved": []ledger.UnresolvedCode{}}, nil
	}
	if err != nil {
		return nil, err
	}
	return map[string]any{"run": run, "unresolved": us}, nil
}

// registerTool decodes the arguments into Req, calls fn and returns its
// result as JSON text. Failures are reported as tool errors.
func registerTool[Req any](srv *mcp.Server, tool *mcp.Tool, fn func(context.Context, *Req) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r Req
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}

		resp, err := fn(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}

		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

// inputSchema builds a JSON Schema object with type "object".
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
