// Package progress carries an optional status callback through a context so
// long-running calls can report retries to an interactive caller.
package progress

import (
	"context"
	"fmt"
)

// Func receives human-readable status lines.
type Func func(msg string)

type key struct{}

// With returns a context carrying fn.
func With(ctx context.Context, fn Func) context.Context {
	return context.WithValue(ctx, key{}, fn)
}

// Report formats a status line and hands it to the callback in ctx. It does
// nothing when no callback is set, which is the case for MCP transports.
func Report(ctx context.Context, format string, args ...any) {
	fn, ok := ctx.Value(key{}).(Func)
	if !ok || fn == nil {
		return
	}
	fn(fmt.Sprintf(format, args...))
}
