package docpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/doctext/kit"
	"github.com/hazyhaar/doctext/safeio"
)

// RegisterMCP registers doctext tools on an MCP server.
//
//	doctext_process   : convert a file into canonical text
//	doctext_supported : report whether a path would be accepted
//	doctext_extensions: list accepted extensions
func (p *Pipeline) RegisterMCP(srv *mcp.Server) {
	p.registerProcessTool(srv)
	p.registerSupportedTool(srv)
	p.registerExtensionsTool(srv)
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

// logEndpoint logs every tool call with its duration and outcome.
func (p *Pipeline) logEndpoint(tool string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			p.logger.DebugContext(ctx, "mcp tool call",
				"tool", tool, "transport", kit.GetTransport(ctx), "request_id", kit.GetRequestID(ctx),
				"duration_ms", time.Since(start).Milliseconds(), "error", err)
			return resp, err
		}
	}
}

func (p *Pipeline) withRequestID(ctx context.Context) context.Context {
	ctx = kit.WithTransport(ctx, "mcp")
	return kit.WithRequestID(ctx, p.newID())
}

type pathReq struct {
	Path string `json:"path"`
}

// decodePath reads the path argument and confines it to Config.Root.
func (p *Pipeline) decodePath(req *mcp.CallToolRequest, enrich func(context.Context) context.Context) (*kit.MCPDecodeResult, error) {
	var r pathReq
	if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
		return nil, err
	}
	if r.Path == "" {
		return nil, fmt.Errorf("path is required")
	}
	resolved, err := safeio.Within(p.cfg.Root, r.Path)
	if err != nil {
		return nil, err
	}
	r.Path = resolved
	return &kit.MCPDecodeResult{Request: &r, EnrichCtx: enrich}, nil
}

var pathSchema = inputSchema(map[string]any{
	"path": map[string]any{"type": "string", "description": "Path of the document file"},
}, []string{"path"})

// --- process ---

func (p *Pipeline) registerProcessTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "doctext_process",
		Description: "Convert a spreadsheet, word-processor document, PDF, image or text file into canonical text with provenance metadata.",
		InputSchema: pathSchema,
	}

	endpoint := kit.Chain(p.logEndpoint(tool.Name))(func(ctx context.Context, req any) (any, error) {
		return p.Process(ctx, req.(*pathReq).Path)
	})

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return p.decodePath(req, p.withRequestID)
	})
}

// --- supported ---

func (p *Pipeline) registerSupportedTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "doctext_supported",
		Description: "Report whether a file would be accepted, and its category.",
		InputSchema: pathSchema,
	}

	endpoint := kit.Chain(p.logEndpoint(tool.Name))(func(_ context.Context, req any) (any, error) {
		path := req.(*pathReq).Path
		cat, _ := Classify(path)
		return map[string]any{
			"supported": p.IsSupported(path),
			"category":  string(cat),
		}, nil
	})

	kit.RegisterMCPTool(srv, tool, endpoint, func(req *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return p.decodePath(req, nil)
	})
}

// --- extensions ---

func (p *Pipeline) registerExtensionsTool(srv *mcp.Server) {
	tool := &mcp.Tool{
		Name:        "doctext_extensions",
		Description: "List every supported file extension and the detected capabilities.",
		InputSchema: inputSchema(map[string]any{}, nil),
	}

	endpoint := func(_ context.Context, _ any) (any, error) {
		return map[string]any{
			"extensions":   p.SupportedExtensions(),
			"capabilities": p.caps.List(),
		}, nil
	}

	kit.RegisterMCPTool(srv, tool, endpoint, func(_ *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		return &kit.MCPDecodeResult{}, nil
	})
}
