package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/hopstack/toolcatalog/catalog"
	"github.com/hopstack/toolcatalog/internal"
	"github.com/hopstack/toolcatalog/internal/config"
	"github.com/hopstack/toolcatalog/mcp"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// options holds the flags shared by every subcommand
type options struct {
	configPath string
	sources    []string
	auth       string
	verbose    bool
	retries    int
	timeout    time.Duration

	getenv func(string) string
}

func newRootCmd() *cobra.Command {
	opts := &options{
		getenv: os.Getenv,
	}

	cmd := &cobra.Command{
		Use:   "toolcatalog",
		Short: "Serve a tool catalog over MCP",
		Long: `toolcatalog loads tool definitions from one or more catalog sources and
serves them to MCP clients, either over streamable HTTP or over stdio.

A source can be:
- A local file path (JSON array or YAML sequence of tool definitions)
- An HTTP(S) URL
- "-" to read from stdin

Sources are merged in order. Tool names must be unique across all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       fmt.Sprintf("%s (commit: %s, built at: %s)", version, commit, date),
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a YAML or JSON config file")
	flags.StringArrayVarP(&opts.sources, "source", "s", nil, "Catalog source path or URL (repeatable, replaces configured sources)")
	flags.StringVar(&opts.auth, "auth", "", "Authorization header value for remote sources (e.g. 'Bearer token123' or 'env:CATALOG_TOKEN')")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging to stderr")
	flags.IntVar(&opts.retries, "retries", 3, "Maximum number of retries for remote sources")
	flags.DurationVar(&opts.timeout, "timeout", 60*time.Second, "HTTP timeout for remote sources")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newStdioCmd(opts))
	cmd.AddCommand(newValidateCmd(opts))
	return cmd
}

func (o *options) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// config loads the config file and applies the environment and any flags
// set on the command line, in that order.
func (o *options) config(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(o.getenv); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if len(o.sources) > 0 {
		cfg.Sources = make([]catalog.Source, 0, len(o.sources))
		for _, location := range o.sources {
			cfg.Sources = append(cfg.Sources, catalog.Source{Location: location})
		}
	}
	if flags.Changed("retries") {
		cfg.Remote.Retries = o.retries
	}
	if flags.Changed("timeout") {
		cfg.Remote.Timeout = config.Duration(o.timeout)
	}
	if o.auth != "" {
		if cfg.Remote.Headers == nil {
			cfg.Remote.Headers = map[string]string{}
		}
		cfg.Remote.Headers["Authorization"] = o.auth
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("no catalog sources: pass --source or list sources in the config file")
	}
	return cfg, nil
}

// loadRegistry reads and merges every configured source. stdin serves the
// "-" source.
func loadRegistry(ctx context.Context, cfg *config.Config, stdin io.Reader, logger *slog.Logger) (*catalog.Registry, error) {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = cfg.Remote.Retries
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 30 * time.Second
	retryClient.HTTPClient.Timeout = time.Duration(cfg.Remote.Timeout)
	retryClient.Logger = logger

	transport, err := internal.NewHeaderTransport(ctx, retryClient.HTTPClient.Transport, cfg.Remote.Headers)
	if err != nil {
		return nil, fmt.Errorf("error configuring remote sources: %w", err)
	}
	retryClient.HTTPClient.Transport = transport

	reader := catalog.NewReader(
		catalog.WithHTTPClient(retryClient.StandardClient()),
		catalog.WithStdin(stdin),
	)

	locations := make([]string, 0, len(cfg.Sources))
	for _, src := range cfg.Sources {
		locations = append(locations, src.Location)
	}
	logger.Info("loading catalog", "sources", strings.Join(locations, ", "))

	registry, err := catalog.Load(ctx, reader, cfg.Sources...)
	if err != nil {
		return nil, err
	}
	logger.Info("catalog loaded", "tools", registry.Len(), "categories", len(registry.Categories()))
	return registry, nil
}

func newMCPServer(cfg *config.Config, registry *catalog.Registry, logger *slog.Logger) (*mcp.Server, error) {
	metrics, err := mcp.NewMetrics(otel.GetMeterProvider().Meter("toolcatalog"))
	if err != nil {
		return nil, fmt.Errorf("error creating metrics: %w", err)
	}

	server, err := mcp.NewServer(registry,
		mcp.WithServerInfo(cfg.Server.Name, cfg.Server.Version),
		mcp.WithInstructions(cfg.Instructions),
		mcp.WithLogger(logger),
		mcp.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("error creating server: %w", err)
	}
	return server, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
