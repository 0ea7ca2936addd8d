// Package mcp exposes catalog servers over the Model Context Protocol.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/lukman83/serpstat-mcp/internal/dispatch"
)

const (
	ServerPrefix = "serpstat-"
	Version      = "1.0.0"
)

// NewServer builds an MCP server exposing every tool of the dispatcher's
// registry.
func NewServer(d *dispatch.Dispatcher, logger zerolog.Logger) *server.MCPServer {
	reg := d.Registry()
	hooks := &server.Hooks{}
	hooks.AddBeforeCallTool(routeUnknownTools(reg))
	s := server.NewMCPServer(
		ServerPrefix+reg.Server(),
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(reg.Description()),
		server.WithHooks(hooks),
		server.WithToolFilter(hideUnknownToolRoute),
	)

	registerTools(s, d, logger)
	return s
}

// Serve starts the MCP stdio server for a single catalog.
func Serve(d *dispatch.Dispatcher, logger zerolog.Logger) error {
	logger.Info().
		Str("server", d.Registry().Server()).
		Int("tools", d.Registry().Len()).
		Msg("serving MCP over stdio")
	return server.ServeStdio(NewServer(d, logger))
}
