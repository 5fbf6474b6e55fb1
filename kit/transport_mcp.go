package kit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolArgs is a decoded tool call: the request handed to the Endpoint and an
// optional hook applied to the call context first.
type ToolArgs struct {
	Request any
	Context func(context.Context) context.Context
}

// ToolDecoder turns MCP call arguments into ToolArgs.
type ToolDecoder func(*mcp.CallToolRequest) (*ToolArgs, error)

// NoArgs decodes tools whose input schema is an empty object.
func NoArgs(*mcp.CallToolRequest) (*ToolArgs, error) { return &ToolArgs{}, nil }

// Detached is NoArgs for tools whose work must outlive the client's call,
// such as a browser capture that has to leave the session consistent.
func Detached(*mcp.CallToolRequest) (*ToolArgs, error) {
	return &ToolArgs{Context: context.WithoutCancel}, nil
}

// RegisterMCPTool exposes endpoint as an MCP tool. A nil decode means NoArgs.
// The endpoint's response is returned as a single JSON text block; decode,
// endpoint and marshal failures all become tool errors, never protocol errors.
func RegisterMCPTool(srv *mcp.Server, tool *mcp.Tool, endpoint Endpoint, decode ToolDecoder) {
	if decode == nil {
		decode = NoArgs
	}
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = WithTransport(ctx, "mcp")
		args, err := decode(req)
		if err != nil {
			return toolError(fmt.Errorf("invalid arguments: %w", err)), nil
		}
		if args.Context != nil {
			ctx = args.Context(ctx)
		}

		resp, err := endpoint(ctx, args.Request)
		if err != nil {
			return toolError(errors.New(err.Error())), nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			return toolError(fmt.Errorf("marshal: %w", err)), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func toolError(err error) *mcp.CallToolResult {
	var res mcp.CallToolResult
	res.SetError(err)
	return &res
}
