// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/mock"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/search"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/server"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store/sqlite"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

func main() {
	spec, err := generateSpec()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	outPath := "api/openapi/spec.json"
	if len(os.Args) > 1 {
		outPath = os.Args[1]
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error creating output dir: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(outPath, spec, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "error writing spec: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("OpenAPI spec written to %s\n", outPath)
}

// generateSpec creates a server with all routes registered and extracts the
// OpenAPI spec that huma generates from the Go type annotations. The service
// is wired against an in-memory database; handlers are never invoked.
func generateSpec() ([]byte, error) {
	st, err := sqlite.NewMemoryStore(":memory:", 384)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeCLISetupFailure, "opening in-memory store: %w", err)
	}
	defer func() { _ = st.Close() }()

	svc := memory.NewService(st, search.NewScan(st), mock.New(384), memory.Config{
		SearchThreshold:    0.5,
		DuplicateThreshold: 0.7,
		SearchMaxLimit:     50,
		ListMaxLimit:       100,
		Engine:             "scan",
	}, nil)

	srv, err := server.New(server.Config{ListenAddr: "127.0.0.1:0"}, svc)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeCLISetupFailure, "creating server: %w", err)
	}

	return json.MarshalIndent(srv.API().OpenAPI(), "", "  ")
}
