// Package rpc is the Serpstat JSON-RPC client. It owns the endpoint and the
// API key, retries transient failures with linear backoff and normalizes
// every outcome into a Result.
package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/lukman83/serpstat-mcp/internal/httputil"
	"github.com/lukman83/serpstat-mcp/internal/metrics"
	"github.com/lukman83/serpstat-mcp/internal/progress"
)

const (
	DefaultBaseURL    = "https://api.serpstat.com/v4"
	DefaultTimeout    = 120 * time.Second
	DefaultMaxRetries = 3
	DefaultRetryDelay = time.Second
)

// Config holds the immutable client settings.
type Config struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration // per attempt
	MaxRetries int
	RetryDelay time.Duration // multiplied by the attempt number
}

// Client is safe for concurrent use.
type Client struct {
	cfg      Config
	endpoint string
	redacted string

	http    *http.Client
	logger  zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer

	maxBody int64
	sleep   func(ctx context.Context, d time.Duration) error
	newID   func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client, e.g. one with a throttling transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// CallOption adjusts a single Invoke.
type CallOption func(*callOptions)

type callOptions struct {
	csv bool
}

// WithCSV requests a plain-text response. Non-JSON bodies are then returned
// as Result.Text instead of failing to decode.
func WithCSV() CallOption {
	return func(o *callOptions) { o.csv = true }
}

// New validates cfg and builds a client. Zero BaseURL and Timeout fall back
// to the package defaults; a negative MaxRetries means no retries.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingCredential
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", cfg.BaseURL)
	}

	c := &Client{
		cfg:      cfg,
		endpoint: base.String() + "/?token=" + url.QueryEscape(cfg.APIKey),
		redacted: base.String() + "/?token=REDACTED",
		http:     httputil.NewHTTPClient(nil, 0),
		logger:   zerolog.Nop(),
		tracer:   otel.Tracer("github.com/lukman83/serpstat-mcp/internal/rpc"),
		maxBody:  httputil.MaxBodyBytes,
		sleep:    sleepContext,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns the effective configuration with the key masked.
func (c *Client) Config() Config {
	cfg := c.cfg
	cfg.APIKey = "REDACTED"
	return cfg
}

type retryState struct {
	attempt int
	lastErr error
}

// Invoke calls method with params and never returns a Go error: every
// outcome, including cancellation, is described by the Result. A nil Client
// answers every call with MISSING_CREDENTIAL.
func (c *Client) Invoke(ctx context.Context, method string, params map[string]any, opts ...CallOption) Result {
	if c == nil || c.cfg.APIKey == "" {
		return failure(CodeMissingCredential, ErrMissingCredential.Error(), nil)
	}
	var co callOptions
	for _, opt := range opts {
		opt(&co)
	}
	if params == nil {
		params = map[string]any{}
	}

	ctx, span := c.tracer.Start(ctx, "rpc.Invoke", trace.WithAttributes(
		attribute.String("rpc.method", method),
		attribute.Bool("rpc.csv", co.csv),
	))
	defer span.End()

	start := time.Now()
	res := c.invoke(ctx, method, params, co)
	c.metrics.RPCDuration(method, time.Since(start))

	span.SetAttributes(attribute.Int("rpc.attempts", res.Attempts))
	if res.Success {
		span.SetStatus(codes.Ok, "")
		c.metrics.Credits(method, creditsFor(res, method, params))
	} else {
		span.SetAttributes(attribute.String("rpc.error_code", res.Error.Code))
		span.SetStatus(codes.Error, res.Error.Message)
	}
	return res
}

func (c *Client) invoke(ctx context.Context, method string, params map[string]any, co callOptions) Result {
	id := c.newID()
	body, err := json.Marshal(wireRequest{ID: id, Method: method, Params: params})
	if err != nil {
		return failure(CodeInternal, fmt.Sprintf("encode request: %v", err), nil)
	}
	endpoint := c.endpoint + "#" + method

	log := c.logger.With().Str("method", method).Str("request_id", id).Logger()

	var st retryState
	for {
		log.Debug().
			Str("url", c.redacted+"#"+method).
			Int("attempt", st.attempt+1).
			Msg("sending request")

		res, err := c.send(ctx, endpoint, method, body, co)
		if err == nil {
			res.Attempts = st.attempt + 1
			if res.RequestID == "" {
				res.RequestID = id
			}
			return res
		}
		st.lastErr = err

		if ctx.Err() != nil {
			return c.cancelled(ctx, st)
		}
		if st.attempt >= c.cfg.MaxRetries {
			log.Error().Err(err).Int("attempts", st.attempt+1).Msg("retries exhausted")
			return Result{
				Attempts: st.attempt + 1,
				Error: &Error{
					Code:    CodeAPIRequestFailed,
					Message: err.Error(),
					Details: map[string]any{"attempts": st.attempt + 1, "last_error": err.Error()},
				},
			}
		}

		delay := c.backoff(st.attempt)
		log.Warn().Err(err).
			Int("attempt", st.attempt+1).
			Dur("backoff", delay).
			Msg("retrying request")
		progress.Report(ctx, "%s failed (%v), retry %d/%d in %s", method, err, st.attempt+1, c.cfg.MaxRetries, delay)
		c.metrics.RPCRetry(method)

		if err := c.sleep(ctx, delay); err != nil {
			return c.cancelled(ctx, st)
		}
		st.attempt++
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	n := time.Duration(attempt + 1)
	if c.cfg.RetryDelay > 0 && n > math.MaxInt64/c.cfg.RetryDelay {
		return time.Duration(math.MaxInt64)
	}
	return c.cfg.RetryDelay * n
}

func (c *Client) cancelled(ctx context.Context, st retryState) Result {
	msg := "request cancelled"
	if err := ctx.Err(); err != nil {
		msg = fmt.Sprintf("request cancelled: %v", err)
	}
	details := map[string]any{"attempts": st.attempt + 1}
	if st.lastErr != nil {
		details["last_error"] = st.lastErr.Error()
	}
	return Result{
		Attempts: st.attempt + 1,
		Error:    &Error{Code: CodeRequestCancelled, Message: msg, Details: details},
	}
}

// send performs one attempt. A non-nil error means the attempt failed in a
// retryable way; otherwise the Result is final.
func (c *Client) send(ctx context.Context, endpoint, method string, body []byte, co callOptions) (Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return failure(CodeInternal, fmt.Sprintf("build request: %v", c.redact(err)), nil), nil
	}
	req.Header = httputil.RPCHeaders(co.csv)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.RPCAttempt(method, "transport_error")
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return Result{}, fmt.Errorf("attempt timed out after %s", c.cfg.Timeout)
		}
		return Result{}, fmt.Errorf("send request: %w", c.redact(err))
	}
	defer resp.Body.Close()

	raw, err := httputil.ReadBodyLimit(resp, c.maxBody)
	if errors.Is(err, httputil.ErrBodyTooLarge) {
		c.metrics.RPCAttempt(method, "error")
		return failure(CodeBodyTooLarge, err.Error(), map[string]any{"limit_bytes": c.maxBody}), nil
	}
	if err != nil {
		c.metrics.RPCAttempt(method, "transport_error")
		return Result{}, err
	}

	res, retryErr := classify(resp.StatusCode, raw, co)
	switch {
	case retryErr != nil:
		c.metrics.RPCAttempt(method, "retryable")
	case res.Success:
		c.metrics.RPCAttempt(method, "ok")
	default:
		c.metrics.RPCAttempt(method, "error")
	}
	return res, retryErr
}

// classify maps a complete HTTP response to a final Result or a retryable
// error. An error member in the body is always final, whatever the status.
func classify(status int, raw []byte, co callOptions) (Result, error) {
	trimmed := bytes.TrimSpace(raw)

	wr, isObject := decodeResponse(trimmed)
	if isObject && hasValue(wr["error"]) {
		return Result{
			RequestID:   renderID(wr["id"]),
			CreditsUsed: wr.creditsUsed(),
			Error:       upstreamError(wr["error"]),
		}, nil
	}

	if status >= 500 || status == http.StatusTooManyRequests {
		return Result{}, fmt.Errorf("upstream returned HTTP %d", status)
	}
	if status < 200 || status > 299 {
		return failure(CodeHTTPError,
			fmt.Sprintf("upstream returned HTTP %d", status),
			map[string]any{"status": status, "body": snippet(trimmed)},
		), nil
	}

	if json.Valid(trimmed) && len(trimmed) > 0 {
		res := Result{Success: true, Data: json.RawMessage(raw)}
		if isObject {
			res.RequestID = renderID(wr["id"])
			res.CreditsUsed = wr.creditsUsed()
		}
		return res, nil
	}
	if co.csv {
		return Result{Success: true, Text: string(raw)}, nil
	}
	return failure(CodeDecodeError, "upstream returned a non-JSON body", map[string]any{"body": snippet(trimmed)}), nil
}

// credits converts a reported credit count, clamped to [0, MaxInt32].
func credits(f float64) *int {
	var n int
	switch {
	case math.IsNaN(f) || f <= 0:
		n = 0
	case f >= math.MaxInt32:
		n = math.MaxInt32
	default:
		n = int(f)
	}
	return &n
}

func creditsFor(res Result, method string, params map[string]any) int {
	if res.CreditsUsed != nil {
		return *res.CreditsUsed
	}
	return EstimateCredits(method, params)
}

func snippet(b []byte) string {
	const limit = 512
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}

// redact strips the API key from errors that embed the request URL.
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = c.redacted
	}
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
