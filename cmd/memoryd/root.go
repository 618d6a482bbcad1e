// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root memoryd command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "memoryd",
		Short:         "memoryd — persistent semantic memory for AI agents",
		Long:          "memoryd stores agent memories in SQLite, finds them again by meaning, and refuses near-duplicate writes.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	root.AddCommand(
		newServeCmd(),
		newExportCmd(),
		newImportCmd(),
		newVersionCmd(),
	)

	return root
}

// setupLogging routes logs to stderr so the stdio tool protocol keeps stdout
// to itself.
func setupLogging(cmd *cobra.Command) {
	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// configPath resolves the --config flag, falling back to auto-discovery of
// the bootstrapped default config.
func configPath(cmd *cobra.Command) string {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path
	}
	return discoverConfig()
}
