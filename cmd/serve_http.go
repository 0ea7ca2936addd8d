package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lukman83/serpstat-mcp/internal/metrics"
	mcpserver "github.com/lukman83/serpstat-mcp/mcp"
)

var serveHTTPCmd = &cobra.Command{
	Use:   "serve-http [server...]",
	Short: "Start MCP HTTP server",
	Long: "Start the MCP server over streamable HTTP for remote access. Each catalog is\n" +
		"mounted at /mcp/<server>; all catalogs are served when none are named.",
	RunE: runServeHTTP,
}

func init() {
	serveHTTPCmd.Flags().String("port", "", "HTTP port (default from $PORT or 8080)")
	serveHTTPCmd.Flags().Bool("metrics", true, "Expose Prometheus metrics on /metrics")
	rootCmd.AddCommand(serveHTTPCmd)
}

func runServeHTTP(cmd *cobra.Command, args []string) error {
	regs, err := loadCatalog(args...)
	if err != nil {
		return err
	}

	m := metrics.New()
	dispatchers, err := buildDispatchers(regs, m)
	if err != nil {
		return err
	}

	port := cfg.HTTPPort
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}
	opts := mcpserver.HTTPOptions{
		Addr:   fmt.Sprintf(":%s", port),
		APIKey: cfg.HTTPAPIKey,
		Logger: logger,
	}
	if on, _ := cmd.Flags().GetBool("metrics"); on {
		opts.Metrics = m.Handler()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return mcpserver.ServeHTTP(ctx, dispatchers, opts)
}
