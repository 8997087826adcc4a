package main

import (
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hopstack/toolcatalog/mcp"
)

func newStdioCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve the catalog over stdio as a single MCP session",
		Long: `Serve the catalog over stdio as a single MCP session.

Requests are read from stdin as newline-delimited JSON-RPC messages and
responses are written to stdout. Logs go to stderr. The session ends when
stdin is closed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			logger := opts.logger(cmd.ErrOrStderr())

			cfg, err := opts.config(cmd)
			if err != nil {
				return err
			}
			for _, src := range cfg.Sources {
				if src.Location == "-" {
					return errors.New("stdin carries the stdio transport and cannot also be a catalog source")
				}
			}

			registry, err := loadRegistry(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			server, err := newMCPServer(cfg, registry, logger)
			if err != nil {
				return err
			}

			session := server.NewSession(ctx)
			defer server.CloseSession(ctx, session)

			transport := mcp.NewStdioTransport(cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())

			// The transport blocks on reads, so a signal ends the command
			// without waiting for stdin to close.
			done := make(chan error, 1)
			go func() {
				done <- transport.Run(ctx, server.Handler(session))
			}()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				logger.Info("shutting down")
				return nil
			}
		},
	}
}
