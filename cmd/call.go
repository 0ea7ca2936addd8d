package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/dispatch"
	"github.com/lukman83/serpstat-mcp/internal/progress"
	"github.com/lukman83/serpstat-mcp/internal/rpc"
	"github.com/lukman83/serpstat-mcp/internal/schema"
	"github.com/lukman83/serpstat-mcp/internal/ui"
)

var callCmd = &cobra.Command{
	Use:   "call <server> <tool>",
	Short: "Invoke a single tool and print its result",
	Long: "Invoke a tool once, as an MCP client would, and print the envelope text.\n" +
		"Arguments are a JSON object given with --args or read from a file with --args-file.\n" +
		"With --batch, a JSON array of {\"tool\", \"arguments\"} objects is run concurrently.",
	Example: `  serpstat-mcp call domain-analysis getDomainsInfo --args '{"domains":["example.com"],"se":"g_us"}'
  serpstat-mcp call project-management getProjects --dry-run
  serpstat-mcp call backlinks --batch requests.json`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runCall,
}

func init() {
	callCmd.Flags().String("args", "", "Tool arguments as a JSON object")
	callCmd.Flags().String("args-file", "", "Read tool arguments from a JSON file (- for stdin)")
	callCmd.Flags().String("batch", "", "Run a JSON array of requests from a file (- for stdin)")
	callCmd.Flags().Bool("dry-run", false, "Validate and print the upstream request without sending it")
	rootCmd.AddCommand(callCmd)
}

// batchItem is one entry of a --batch file.
type batchItem struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

type batchResult struct {
	Tool    string `json:"tool"`
	IsError bool   `json:"is_error"`
	Code    string `json:"code,omitempty"`
	Text    string `json:"text"`
}

type dryRun struct {
	Server           string         `json:"server"`
	Tool             string         `json:"tool"`
	Method           string         `json:"method"`
	Format           catalog.Format `json:"format"`
	Params           map[string]any `json:"params"`
	EstimatedCredits int            `json:"estimated_credits"`
}

func runCall(cmd *cobra.Command, args []string) error {
	batchPath, _ := cmd.Flags().GetString("batch")
	dry, _ := cmd.Flags().GetBool("dry-run")

	switch {
	case batchPath == "" && len(args) != 2:
		return errors.New("call needs <server> <tool>, or <server> --batch <file>")
	case batchPath != "" && len(args) != 1:
		return errors.New("--batch takes the tool names from the file; pass only <server>")
	case batchPath != "" && dry:
		return errors.New("--dry-run cannot be combined with --batch")
	}
	if !dry && cfg.APIKey == "" {
		return fmt.Errorf("SERPSTAT_API_KEY is required: %w", rpc.ErrMissingCredential)
	}

	regs, err := loadCatalog(args[0])
	if err != nil {
		return err
	}
	dispatchers, err := buildDispatchers(regs, nil)
	if err != nil {
		return err
	}
	d := dispatchers[0]

	if batchPath != "" {
		return runBatch(cmd, d, batchPath)
	}

	toolArgs, err := readArguments(cmd)
	if err != nil {
		return err
	}
	req := dispatch.Request{Tool: args[1], Arguments: toolArgs}

	if dry {
		call, err := d.Prepare(req)
		if err != nil {
			return describeError(req.Tool, err)
		}
		return printJSON(cmd.OutOrStdout(), dryRun{
			Server:           d.Registry().Server(),
			Tool:             call.Tool.Name,
			Method:           call.Tool.Method,
			Format:           call.Tool.Format,
			Params:           call.Params,
			EstimatedCredits: rpc.EstimateCredits(call.Tool.Method, call.Params),
		})
	}

	spin := ui.NewSpinner(cmd.ErrOrStderr())
	spin.Start(fmt.Sprintf("Calling %s on %s...", req.Tool, d.Registry().Server()))
	ctx := progress.With(cmd.Context(), spin.Update)
	env := d.Handle(ctx, req)
	spin.Stop()

	fmt.Fprintln(cmd.OutOrStdout(), env.Text)
	if env.IsError {
		return fmt.Errorf("%s failed: %s", req.Tool, env.Code)
	}
	return nil
}

func runBatch(cmd *cobra.Command, d *dispatch.Dispatcher, path string) error {
	data, err := readInput(cmd, path)
	if err != nil {
		return err
	}
	var items []batchItem
	if err := decodeJSON(data, &items); err != nil {
		return fmt.Errorf("parse batch file: %w", err)
	}

	reqs := make([]dispatch.Request, len(items))
	for i, it := range items {
		reqs[i] = dispatch.Request{Tool: it.Tool, Arguments: it.Arguments}
	}

	spin := ui.NewSpinner(cmd.ErrOrStderr())
	spin.Start(fmt.Sprintf("Running %d calls on %s...", len(reqs), d.Registry().Server()))
	ctx := progress.With(cmd.Context(), spin.Update)
	envs := d.HandleBatch(ctx, reqs, cfg.MaxConcurrent)
	spin.Stop()

	results := make([]batchResult, len(envs))
	failed := 0
	for i, env := range envs {
		results[i] = batchResult{Tool: reqs[i].Tool, IsError: env.IsError, Code: env.Code, Text: env.Text}
		if env.IsError {
			failed++
		}
	}
	if err := printJSON(cmd.OutOrStdout(), results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d calls failed", failed, len(results))
	}
	return nil
}

// readArguments returns the --args or --args-file object, or an empty one.
func readArguments(cmd *cobra.Command) (map[string]any, error) {
	inline, _ := cmd.Flags().GetString("args")
	path, _ := cmd.Flags().GetString("args-file")
	if inline != "" && path != "" {
		return nil, errors.New("use either --args or --args-file, not both")
	}

	data := []byte(inline)
	if path != "" {
		var err error
		if data, err = readInput(cmd, path); err != nil {
			return nil, err
		}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]any{}, nil
	}

	var out map[string]any
	if err := decodeJSON(data, &out); err != nil {
		return nil, fmt.Errorf("parse arguments: %w", err)
	}
	return out, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}

// decodeJSON keeps numbers as json.Number so large integer IDs survive.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}

// describeError turns a Prepare failure into the text a CLI user sees.
func describeError(tool string, err error) error {
	var verr *schema.ValidationError
	switch {
	case errors.Is(err, catalog.ErrUnknownTool):
		return err
	case errors.As(err, &verr):
		return fmt.Errorf("invalid arguments for %s: %w", tool, verr)
	}
	return err
}
