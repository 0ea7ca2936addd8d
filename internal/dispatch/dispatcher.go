// Package dispatch turns a tool invocation into a single upstream call:
// lookup, validation, parameter building and envelope formatting.
package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/metrics"
	"github.com/lukman83/serpstat-mcp/internal/rpc"
	"github.com/lukman83/serpstat-mcp/internal/schema"
)

// Invoker performs one upstream call. *rpc.Client implements it.
type Invoker interface {
	Invoke(ctx context.Context, method string, params map[string]any, opts ...rpc.CallOption) rpc.Result
}

// Request is a single tool invocation.
type Request struct {
	Tool      string
	Arguments map[string]any
}

// Call is a validated request, ready to send.
type Call struct {
	Tool   catalog.Tool
	Params map[string]any
}

// Dispatcher is safe for concurrent use.
type Dispatcher struct {
	reg     *catalog.Registry
	invoker Invoker

	logger  zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Dispatcher)

func WithLogger(l zerolog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func New(reg *catalog.Registry, invoker Invoker, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		reg:     reg,
		invoker: invoker,
		logger:  zerolog.Nop(),
		tracer:  otel.Tracer("github.com/lukman83/serpstat-mcp/internal/dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the tool table the dispatcher serves.
func (d *Dispatcher) Registry() *catalog.Registry {
	return d.reg
}

// Prepare resolves and validates req without calling upstream. The returned
// error is either catalog.ErrUnknownTool or a *schema.ValidationError.
func (d *Dispatcher) Prepare(req Request) (Call, error) {
	tool, err := d.reg.Lookup(req.Tool)
	if err != nil {
		return Call{}, err
	}
	args, err := schema.Validate(tool.Params, req.Arguments)
	if err != nil {
		return Call{Tool: tool}, err
	}
	return Call{Tool: tool, Params: BuildParams(tool, args)}, nil
}

// Handle runs req to completion and always returns an envelope.
func (d *Dispatcher) Handle(ctx context.Context, req Request) (env Envelope) {
	ctx, span := d.tracer.Start(ctx, "dispatch.Handle", trace.WithAttributes(
		attribute.String("mcp.server", d.reg.Server()),
		attribute.String("mcp.tool", req.Tool),
	))
	defer span.End()

	log := d.logger.With().Str("tool", req.Tool).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("tool handler panicked")
			env = ErrorEnvelope(CodeInternal, fmt.Sprintf("internal error: %v", r))
		}
		outcome := "ok"
		if env.IsError {
			outcome = env.Code
			span.SetStatus(codes.Error, env.Code)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		d.metrics.ToolCall(d.reg.Server(), req.Tool, outcome)
	}()

	call, err := d.Prepare(req)
	var verr *schema.ValidationError
	switch {
	case errors.Is(err, catalog.ErrUnknownTool):
		log.Warn().Msg("unknown tool")
		return ErrorEnvelope(CodeUnknownTool, "unknown tool: "+req.Tool)
	case errors.As(err, &verr):
		log.Warn().Strs("fields", verr.Fields()).Msg("invalid arguments")
		return ErrorEnvelope(CodeInvalidArguments, fmt.Sprintf("invalid arguments for %s: %s", req.Tool, verr.Error()))
	case err != nil:
		return ErrorEnvelope(CodeInternal, err.Error())
	}

	var opts []rpc.CallOption
	if call.Tool.CSV() {
		opts = append(opts, rpc.WithCSV())
	}

	res := d.invoker.Invoke(ctx, call.Tool.Method, call.Params, opts...)
	if !res.Success {
		e := res.Error
		if e == nil {
			e = &rpc.Error{Code: CodeInternal, Message: "upstream call failed without an error"}
		}
		log.Error().
			Str("method", call.Tool.Method).
			Str("code", e.Code).
			Int("attempts", res.Attempts).
			Msg(e.Message)
		return ErrorEnvelope(e.Code, e.Message)
	}

	log.Debug().
		Str("method", call.Tool.Method).
		Str("request_id", res.RequestID).
		Int("attempts", res.Attempts).
		Msg("tool call succeeded")
	return successEnvelope(res)
}

// BuildParams assembles the upstream params from validated args. Values equal
// to their declared default are left out unless the param is AlwaysSend, so
// the upstream applies its own default.
func BuildParams(tool catalog.Tool, args schema.Arguments) map[string]any {
	params := make(map[string]any, len(args))
	for i := range tool.Params {
		p := &tool.Params[i]
		v, ok := args[p.Name]
		if !ok {
			continue
		}
		if !p.AlwaysSend && p.IsDefault(v) {
			continue
		}
		params[p.Name] = v
	}
	return params
}
