package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/lukman83/serpstat-mcp/config"
	"github.com/lukman83/serpstat-mcp/internal/catalog"
	"github.com/lukman83/serpstat-mcp/internal/dispatch"
	"github.com/lukman83/serpstat-mcp/internal/httputil"
	"github.com/lukman83/serpstat-mcp/internal/metrics"
	"github.com/lukman83/serpstat-mcp/internal/rpc"
	"github.com/lukman83/serpstat-mcp/internal/throttle"
)

var (
	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "serpstat-mcp",
	Short: "Serpstat MCP - SEO data tools for MCP clients",
	Long: "Exposes the Serpstat API (domain, keyword, backlink, URL analysis, crawling,\n" +
		"rank tracking, site audit, project and team management) as MCP tool servers.",
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log level: debug, info, warn, error (default from $SERPSTAT_LOG_LEVEL or info)")
	flags.String("base-url", "", "Serpstat API base URL")
	flags.Duration("timeout", 0, "Per-attempt request timeout")
	flags.Int("max-retries", 0, "Retries after a failed attempt")
	flags.Duration("retry-delay", 0, "Base retry delay, multiplied by the attempt number")
	flags.Float64("rate", 0, "Upstream requests per second (0 disables the limit)")
	flags.Int("burst", 0, "Upstream rate limiter burst")
	flags.Int("max-concurrent", 0, "Maximum upstream requests in flight (0 disables the cap)")
}

func initConfig(cmd *cobra.Command, args []string) error {
	cfg = config.DefaultConfig()
	envErr := cfg.LoadFromEnv()

	// Override from flags
	flags := cmd.Flags()
	if v, _ := flags.GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := flags.GetString("base-url"); v != "" {
		cfg.BaseURL = v
	}
	if flags.Changed("timeout") {
		cfg.Timeout, _ = flags.GetDuration("timeout")
	}
	if flags.Changed("max-retries") {
		cfg.MaxRetries, _ = flags.GetInt("max-retries")
	}
	if flags.Changed("retry-delay") {
		cfg.RetryDelay, _ = flags.GetDuration("retry-delay")
	}
	if flags.Changed("rate") {
		cfg.RatePerSecond, _ = flags.GetFloat64("rate")
	}
	if flags.Changed("burst") {
		cfg.RateBurst, _ = flags.GetInt("burst")
	}
	if flags.Changed("max-concurrent") {
		cfg.MaxConcurrent, _ = flags.GetInt("max-concurrent")
	}

	if err := setupLogging(cfg.LogLevel); err != nil {
		return err
	}
	if err := errors.Join(envErr, cfg.Validate()); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// setupLogging routes zerolog to stderr; stdout carries MCP frames.
func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return fmt.Errorf("log level %q: %w", level, err)
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).
		With().Timestamp().Logger()
	return nil
}

// loadCatalog parses the embedded catalogs, optionally narrowed to servers.
func loadCatalog(servers ...string) ([]*catalog.Registry, error) {
	cat, err := catalog.Load()
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if len(servers) == 0 {
		servers = cat.Servers()
	}
	regs := make([]*catalog.Registry, 0, len(servers))
	for _, name := range servers {
		reg, err := cat.Server(name)
		if err != nil {
			return nil, err
		}
		regs = append(regs, reg)
	}
	return regs, nil
}

// buildDispatchers wires one dispatcher per registry. All clients share one
// throttled HTTP client so the rate limit applies to the API key as a whole;
// servers with their own base URL get their own rpc.Client.
func buildDispatchers(regs []*catalog.Registry, m *metrics.Metrics) ([]*dispatch.Dispatcher, error) {
	transport := throttle.New(httputil.NewTransport(), cfg.RatePerSecond, cfg.RateBurst, cfg.MaxConcurrent)
	hc := httputil.NewHTTPClient(transport, 0)

	clients := map[string]*rpc.Client{}
	out := make([]*dispatch.Dispatcher, 0, len(regs))
	for _, reg := range regs {
		base := reg.BaseURL()
		if base == "" {
			base = cfg.BaseURL
		}

		client, ok := clients[base]
		if !ok {
			var err error
			client, err = rpc.New(rpc.Config{
				APIKey:     cfg.APIKey,
				BaseURL:    base,
				Timeout:    cfg.Timeout,
				MaxRetries: cfg.MaxRetries,
				RetryDelay: cfg.RetryDelay,
			},
				rpc.WithHTTPClient(hc),
				rpc.WithLogger(logger.With().Str("component", "rpc").Logger()),
				rpc.WithMetrics(m),
			)
			switch {
			case errors.Is(err, rpc.ErrMissingCredential):
				// Tools stay listable; every call reports MISSING_CREDENTIAL.
				client = nil
			case err != nil:
				return nil, fmt.Errorf("%s: %w", reg.Server(), err)
			}
			clients[base] = client
		}

		out = append(out, dispatch.New(reg, client,
			dispatch.WithLogger(logger.With().Str("server", reg.Server()).Logger()),
			dispatch.WithMetrics(m),
		))
	}

	if cfg.APIKey == "" {
		logger.Warn().Msg("SERPSTAT_API_KEY is not set; tool calls will fail with MISSING_CREDENTIAL")
	}
	return out, nil
}
