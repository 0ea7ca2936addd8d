package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/schema"
)

var toolsCmd = &cobra.Command{
	Use:   "tools [server]",
	Short: "List tool catalogs, or the tools of one catalog",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().String("format", "table", "Output format: table, json")
	rootCmd.AddCommand(toolsCmd)
}

type serverInfo struct {
	Server      string `json:"server"`
	Description string `json:"description"`
	BaseURL     string `json:"base_url,omitempty"`
	Tools       int    `json:"tools"`
}

type toolInfo struct {
	Name        string         `json:"name"`
	Method      string         `json:"method"`
	Description string         `json:"description"`
	Format      catalog.Format `json:"format"`
	InputSchema map[string]any `json:"input_schema"`
}

func runTools(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unknown format %q (want table or json)", format)
	}
	out := cmd.OutOrStdout()

	regs, err := loadCatalog(args...)
	if err != nil {
		return err
	}

	if len(args) == 0 {
		if format == "table" {
			printServersTable(out, regs)
			return nil
		}
		infos := make([]serverInfo, 0, len(regs))
		for _, r := range regs {
			infos = append(infos, serverInfo{
				Server:      r.Server(),
				Description: r.Description(),
				BaseURL:     r.BaseURL(),
				Tools:       r.Len(),
			})
		}
		return printJSON(out, infos)
	}

	reg := regs[0]
	if format == "table" {
		printToolsTable(out, reg)
		return nil
	}
	tools := reg.Tools()
	infos := make([]toolInfo, 0, len(tools))
	for _, t := range tools {
		props, required := schema.InputSchema(t.Params)
		in := map[string]any{"type": "object", "properties": props}
		if len(required) > 0 {
			in["required"] = required
		}
		infos = append(infos, toolInfo{
			Name:        t.Name,
			Method:      t.Method,
			Description: t.Description,
			Format:      t.Format,
			InputSchema: in,
		})
	}
	return printJSON(out, infos)
}
