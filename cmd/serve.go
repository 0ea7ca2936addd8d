package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/lukman83/serpstat-mcp/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve <server>",
	Short: "Start MCP stdio server for one tool catalog",
	Long: "Start an MCP server on stdio exposing the tools of a single catalog,\n" +
		"e.g. \"serpstat-mcp serve domain-analysis\". Run \"serpstat-mcp tools\" to list catalogs.",
	Args: cobra.ExactArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	regs, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	dispatchers, err := buildDispatchers(regs, nil)
	if err != nil {
		return err
	}

	if err := mcpserver.Serve(dispatchers[0], logger); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
