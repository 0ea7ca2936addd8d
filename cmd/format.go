package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/schema"
)

// printServersTable prints one line per catalog server.
func printServersTable(w io.Writer, regs []*catalog.Registry) {
	width := 0
	for _, r := range regs {
		width = max(width, len(r.Server()))
	}
	for _, r := range regs {
		fmt.Fprintf(w, " %-*s  %3d tools  %s\n", width, r.Server(), r.Len(), truncate(r.Description(), 80))
	}
}

// printToolsTable prints tools in a human-friendly card layout.
func printToolsTable(w io.Writer, reg *catalog.Registry) {
	if base := reg.BaseURL(); base != "" {
		fmt.Fprintf(w, "Endpoint: %s\n\n", base)
	}
	for i, t := range reg.Tools() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		name := t.Name
		if t.CSV() {
			name += " [CSV]"
		}
		fmt.Fprintf(w, " %d. %s\n", i+1, name)
		fmt.Fprintf(w, "    Method: %s\n", t.Method)
		if line := paramLine(t.Params); line != "" {
			fmt.Fprintf(w, "    Params: %s\n", line)
		}
		fmt.Fprintf(w, "    %s\n", truncate(t.Description, 120))
	}
}

// paramLine renders params as "domain*, se*, page=1"; required ones are
// starred and defaults shown.
func paramLine(params []schema.Param) string {
	parts := make([]string, 0, len(params))
	for _, p := range params {
		s := p.Name
		switch {
		case p.Required:
			s += "*"
		case p.Default != nil:
			s += fmt.Sprintf("=%v", p.Default)
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, ", ")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
