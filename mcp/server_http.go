package mcp

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lukman83/serpstat-mcp/internal/dispatch"
)

const shutdownTimeout = 30 * time.Second

// HTTPOptions configures the streamable HTTP transport.
type HTTPOptions struct {
	Addr    string
	APIKey  string       // bearer token required on /mcp routes; empty disables auth
	Metrics http.Handler // served on /metrics when set
	Logger  zerolog.Logger
}

// NewHTTPHandler mounts one stateless MCP endpoint per catalog server at
// /mcp/<server>.
func NewHTTPHandler(dispatchers []*dispatch.Dispatcher, opts HTTPOptions) http.Handler {
	mux := http.NewServeMux()

	servers := make([]string, 0, len(dispatchers))
	for _, d := range dispatchers {
		name := d.Registry().Server()
		servers = append(servers, name)

		s := NewServer(d, opts.Logger)
		var h http.Handler = server.NewStreamableHTTPServer(s, server.WithStateLess(true))
		if opts.APIKey != "" {
			h = bearerAuth(opts.APIKey, h)
		}
		mux.Handle("/mcp/"+name, h)
	}

	health, _ := json.Marshal(map[string]any{"status": "ok", "servers": servers})
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write(health)
	})

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return mux
}

// ServeHTTP runs the HTTP transport until ctx is cancelled, then shuts the
// server down gracefully.
func ServeHTTP(ctx context.Context, dispatchers []*dispatch.Dispatcher, opts HTTPOptions) error {
	srv := &http.Server{
		Addr:         opts.Addr,
		Handler:      NewHTTPHandler(dispatchers, opts),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute, // upstream calls retry with backoff
		IdleTimeout:  120 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		opts.Logger.Info().
			Str("addr", opts.Addr).
			Int("servers", len(dispatchers)).
			Bool("auth", opts.APIKey != "").
			Msg("Serpstat MCP HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		opts.Logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func bearerAuth(apiKey string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp"`)
			http.Error(w, `{"error":"missing Authorization header"}`, http.StatusUnauthorized)
			return
		}
		token, found := strings.CutPrefix(auth, "Bearer ")
		if !found || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp", error="invalid_token"`)
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
