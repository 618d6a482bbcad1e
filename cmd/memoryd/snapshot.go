// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

func newExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export all memories to a snapshot file",
		Long:  "Writes the collection as YAML (or JSON for .json files) without embeddings; importing regenerates them. With no file, YAML goes to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runExport,
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := buildApp(ctx, configPath(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	snap, err := a.service.Export(ctx)
	if err != nil {
		return err
	}

	var (
		out  io.Writer = cmd.OutOrStdout()
		path string
	)
	if len(args) == 1 {
		path = args[0]
		f, err := os.Create(path)
		if err != nil {
			return memerr.Errorf(memerr.CodeCLIInputInvalid, "creating %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	if err := encodeSnapshot(out, path, snap); err != nil {
		return err
	}

	if path != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "exported %d memories to %s\n", len(snap.Records), path)
	}
	return nil
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import memories from a snapshot file",
		Long:  "Reads a YAML or JSON snapshot and re-embeds every record with the configured provider. Records that fail are skipped and reported.",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}

	cmd.Flags().Bool("clear", false, "remove existing memories before importing")

	return cmd
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	path := args[0]

	snap, err := decodeSnapshotFile(path)
	if err != nil {
		return err
	}

	a, err := buildApp(ctx, configPath(cmd))
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	clear, _ := cmd.Flags().GetBool("clear")
	result, err := a.service.Import(ctx, snap, clear)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "imported %d of %d records", result.Imported, len(snap.Records))
	if clear {
		fmt.Fprintf(cmd.OutOrStdout(), " (cleared %d)", result.Cleared)
	}
	fmt.Fprintln(cmd.OutOrStdout())

	for _, e := range result.Errors {
		fmt.Fprintf(cmd.ErrOrStderr(), "record %d skipped: %s\n", e.Index, e.Err)
	}
	return nil
}

func encodeSnapshot(w io.Writer, path string, snap *memory.Snapshot) error {
	if strings.HasSuffix(path, ".json") {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(snap); err != nil {
			return memerr.Wrapf(err, memerr.CodeCLIInputInvalid, "encoding snapshot")
		}
		return nil
	}

	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	if err := enc.Encode(snap); err != nil {
		return memerr.Wrapf(err, memerr.CodeCLIInputInvalid, "encoding snapshot")
	}
	return nil
}

func decodeSnapshotFile(path string) (*memory.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeCLIInputInvalid, "reading %s: %w", path, err)
	}

	var snap memory.Snapshot
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(data, &snap); err != nil {
			return nil, memerr.Errorf(memerr.CodeCLIInputInvalid, "parsing %s: %w", path, err)
		}
		return &snap, nil
	}

	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, memerr.Errorf(memerr.CodeCLIInputInvalid, "parsing %s: %w", path, err)
	}
	return &snap, nil
}
