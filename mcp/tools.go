package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/dispatch"
	"github.com/lukman83/serpstat-mcp/internal/schema"
)

// unknownToolRoute receives calls for names the catalog does not declare, so
// they are answered with an UNKNOWN_TOOL envelope like any other failure.
// Catalog names are camelCase and never contain a dot.
const unknownToolRoute = "serpstat.unknown-tool"

func registerTools(s *server.MCPServer, d *dispatch.Dispatcher, logger zerolog.Logger) {
	for _, tool := range d.Registry().Tools() {
		s.AddTool(toolDefinition(tool), toolHandler(d, logger))
	}
	s.AddTool(mcp.Tool{
		Name:        unknownToolRoute,
		InputSchema: mcp.ToolInputSchema{Type: "object"},
	}, unknownToolHandler(d))
}

// routeUnknownTools rewrites a call for an undeclared tool to unknownToolRoute,
// keeping the requested name in the arguments.
func routeUnknownTools(reg *catalog.Registry) server.OnBeforeCallToolFunc {
	return func(_ context.Context, _ any, request *mcp.CallToolRequest) {
		if _, err := reg.Lookup(request.Params.Name); err == nil {
			return
		}
		request.Params.Arguments = map[string]any{"tool": request.Params.Name}
		request.Params.Name = unknownToolRoute
	}
}

func unknownToolHandler(d *dispatch.Dispatcher) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, _ := request.GetArguments()["tool"].(string)
		return toolResult(d.Handle(ctx, dispatch.Request{Tool: name})), nil
	}
}

func hideUnknownToolRoute(_ context.Context, tools []mcp.Tool) []mcp.Tool {
	out := make([]mcp.Tool, 0, len(tools))
	for _, t := range tools {
		if t.Name != unknownToolRoute {
			out = append(out, t)
		}
	}
	return out
}

// toolDefinition advertises a catalog entry with its JSON Schema input.
func toolDefinition(t catalog.Tool) mcp.Tool {
	props, required := schema.InputSchema(t.Params)
	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}

func toolHandler(d *dispatch.Dispatcher, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (result *mcp.CallToolResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error().Str("tool", request.Params.Name).Interface("panic", r).Msg("tool call panicked")
				result = toolResult(dispatch.ErrorEnvelope(dispatch.CodeInternal, fmt.Sprintf("internal error: %v", r)))
				err = nil
			}
		}()

		env := d.Handle(ctx, dispatch.Request{
			Tool:      request.Params.Name,
			Arguments: request.GetArguments(),
		})
		return toolResult(env), nil
	}
}

// toolResult keeps failures in-band so the client sees the error envelope
// instead of a protocol error.
func toolResult(env dispatch.Envelope) *mcp.CallToolResult {
	if env.IsError {
		return mcp.NewToolResultError(env.Text)
	}
	return mcp.NewToolResultText(env.Text)
}
