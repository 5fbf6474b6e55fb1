package capture

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/sitecap/kit"
)

// RegisterMCP registers the sitecap tools on an MCP server.
func (s *Service) RegisterMCP(srv *mcp.Server) {
	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitecap_capture",
		Description: "Replay the configured interaction against the target site once. Returns the captured marker response summary, the anti-forgery token and the target-domain cookies. Fails while another capture is running.",
		InputSchema: emptySchema(),
	}, s.toolMiddleware("sitecap_capture")(func(ctx context.Context, _ any) (any, error) {
		return s.Capture(ctx)
	}), kit.Detached)

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitecap_health",
		Description: "Liveness of the sitecap service: ok flag, server time and host name.",
		InputSchema: emptySchema(),
	}, s.toolMiddleware("sitecap_health")(func(context.Context, any) (any, error) {
		return s.Health(), nil
	}), kit.NoArgs)
}

func (s *Service) toolMiddleware(name string) kit.Middleware {
	return kit.Chain(s.logToolCall(name))
}

func (s *Service) logToolCall(name string) kit.Middleware {
	return func(next kit.Endpoint) kit.Endpoint {
		return func(ctx context.Context, req any) (any, error) {
			start := time.Now()
			resp, err := next(ctx, req)
			log := s.logger.With("tool", name, "transport", kit.GetTransport(ctx), "duration", time.Since(start))
			if err != nil {
				log.Warn("capture: tool call failed", "error", err)
			} else {
				log.Debug("capture: tool call")
			}
			return resp, err
		}
	}
}

func emptySchema() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}
