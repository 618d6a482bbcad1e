// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/server"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/tool"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool protocol on stdio and the HTTP API",
		Long:  "Speaks the newline-delimited tool protocol on stdin/stdout for the agent, and serves the HTTP management API when ui.enabled is set.",
		RunE:  runServe,
	}

	cmd.Flags().String("listen", "", "override HTTP listen address (host:port)")
	cmd.Flags().Bool("no-stdio", false, "disable the stdio tool protocol")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, configPath(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.service.WarmUp(ctx); err != nil {
		return err
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		a.cfg.UI.Listen = listen
		a.cfg.UI.Enabled = true
	}
	noStdio, _ := cmd.Flags().GetBool("no-stdio")

	errCh := make(chan error, 2)

	if a.cfg.UI.Enabled {
		srv, err := server.New(server.Config{ListenAddr: a.cfg.UI.Listen}, a.service)
		if err != nil {
			return err
		}
		slog.Info("http api listening", "addr", a.cfg.UI.Listen)
		go func() { errCh <- srv.Start(ctx) }()
	}

	if !noStdio {
		registry := tool.NewRegistry()
		tool.RegisterMemoryTools(registry, a.service)
		runner := tool.NewRunner(registry, slog.Default())
		slog.Info("tool protocol ready on stdio",
			"tools", len(registry.Definitions()),
			"database", a.cfg.Database.Path)
		go func() {
			errCh <- runner.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
			// stdin closing means the agent hung up; shut everything down.
			stop()
		}()
	} else if !a.cfg.UI.Enabled {
		slog.Warn("nothing to serve: stdio disabled and ui.enabled is false")
		return nil
	}

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
		return nil
	}
}
