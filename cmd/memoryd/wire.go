// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"context"
	"os"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/config"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/google"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/mock"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/ollama"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/openai"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/search"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store/sqlite"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// app bundles the wired subsystems for one command invocation.
type app struct {
	cfg      *config.Config
	store    *sqlite.MemoryStore
	embedder embedding.Provider
	service  *memory.Service
}

func (a *app) Close() error {
	err := a.embedder.Close()
	if serr := a.store.Close(); err == nil {
		err = serr
	}
	return err
}

// buildApp loads config and wires the store, similarity engine, embedding
// provider, and memory service together.
func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.WarnInsecurePermissions(cfgPath)

	store, err := sqlite.NewMemoryStore(cfg.Database.Path, cfg.Embedding.Dimensions)
	if err != nil {
		return nil, err
	}

	embedder, err := buildEmbedder(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	var index search.Index
	switch cfg.Search.Engine {
	case "vec":
		index = sqlite.NewVecIndex(store)
	default:
		index = search.NewScan(store)
	}

	service := memory.NewService(store, index, embedder, memory.Config{
		SearchThreshold:    cfg.Search.Threshold,
		DuplicateThreshold: cfg.Duplicate.Threshold,
		SearchMaxLimit:     cfg.Search.MaxLimit,
		ListMaxLimit:       cfg.List.MaxLimit,
		Engine:             cfg.Search.Engine,
	}, nil)

	return &app{
		cfg:      cfg,
		store:    store,
		embedder: embedder,
		service:  service,
	}, nil
}

func buildEmbedder(ctx context.Context, cfg *config.Config) (embedding.Provider, error) {
	e := cfg.Embedding
	switch e.Provider {
	case "mock":
		return mock.New(e.Dimensions), nil
	case "openai":
		return openai.New(openai.Config{
			APIKey:     e.APIKey,
			Model:      e.Model,
			Dimensions: e.Dimensions,
			BaseURL:    e.Endpoint,
		})
	case "google":
		return google.New(ctx, google.Config{
			APIKey:     e.APIKey,
			Model:      e.Model,
			Dimensions: e.Dimensions,
		})
	case "ollama":
		return ollama.New(ollama.Config{
			Endpoint:   e.Endpoint,
			Model:      e.Model,
			Dimensions: e.Dimensions,
		})
	default:
		return nil, memerr.Errorf(memerr.CodeEmbeddingProviderUnsupported, "unsupported embedding provider %q", e.Provider)
	}
}

// discoverConfig returns the default config path if a file exists there,
// bootstrapping one on first run. An empty result means defaults only.
func discoverConfig() string {
	path, err := config.DefaultConfigPath()
	if err != nil {
		return ""
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return config.BootstrapConfig()
}
