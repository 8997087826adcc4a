package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/hopstack/toolcatalog/internal/config"
	"github.com/hopstack/toolcatalog/internal/server"
	"github.com/hopstack/toolcatalog/mcp"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var (
		addr           string
		maxBody        int64
		heartbeat      time.Duration
		sessionTimeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the catalog over streamable HTTP",
		Long: `Serve the catalog over streamable HTTP.

Routes:
  POST   /mcp                 JSON-RPC requests
  GET    /mcp                 server event stream for a session
  DELETE /mcp                 end a session
  GET    /tools.json          the catalog (compact, names_only, category, search, offset, limit)
  GET    /tool/{name}/schema  one tool definition
  GET    /categories          tool categories
  GET    /health              liveness and tool count`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger := opts.logger(cmd.ErrOrStderr())

			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Listen = addr
			}
			if cmd.Flags().Changed("max-body") {
				cfg.MaxBodyBytes = maxBody
			}
			if cmd.Flags().Changed("session-timeout") {
				cfg.Sessions.Timeout = config.Duration(sessionTimeout)
			}

			registry, err := loadRegistry(ctx, cfg, cmd.InOrStdin(), logger)
			if err != nil {
				return err
			}
			mcpServer, err := newMCPServer(cfg, registry, logger)
			if err != nil {
				return err
			}

			srv, err := server.New(server.Config{
				MCP:               mcpServer,
				Logger:            logger,
				MaxBodyBytes:      cfg.MaxBodyBytes,
				HeartbeatInterval: heartbeat,
				SessionTimeout:    time.Duration(cfg.Sessions.Timeout),
				MaxSessions:       cfg.Sessions.Max,
			})
			if err != nil {
				return fmt.Errorf("error creating server: %w", err)
			}

			// No write timeout: GET /mcp holds its response open.
			httpServer := &http.Server{
				Addr:              cfg.Listen,
				Handler:           srv.Router(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, ctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("listening", "addr", cfg.Listen, "tools", registry.Len())
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server error: %w", err)
				}
				return nil
			})

			g.Go(func() error {
				<-ctx.Done()
				logger.Info("shutting down")

				srv.Close()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					return fmt.Errorf("shutdown error: %w", err)
				}
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "HTTP listen address (overrides config and PORT)")
	cmd.Flags().Int64Var(&maxBody, "max-body", server.DefaultMaxBodyBytes, "Maximum POST /mcp body size in bytes")
	cmd.Flags().DurationVar(&heartbeat, "heartbeat", 0, "Event stream heartbeat interval (0 for the default)")
	cmd.Flags().DurationVar(&sessionTimeout, "session-timeout", mcp.DefaultSessionTimeout, "Discard sessions idle for this long")
	return cmd
}
