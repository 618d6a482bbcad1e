// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.NotEmpty(t, cfg.Database.Path)
	assert.True(t, cfg.UI.Enabled)
	assert.Equal(t, "127.0.0.1:6277", cfg.UI.Listen)
	assert.Equal(t, "mock", cfg.Embedding.Provider)
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, "scan", cfg.Search.Engine)
	assert.Equal(t, 0.5, cfg.Search.Threshold)
	assert.Equal(t, 0.7, cfg.Duplicate.Threshold)
	assert.Equal(t, 50, cfg.Search.MaxLimit)
	assert.Equal(t, 100, cfg.List.MaxLimit)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memoryd.yaml")
	content := `
database:
  path: /tmp/test-memories.db
ui:
  enabled: false
embedding:
  provider: ollama
  model: nomic-embed-text
  dimensions: 768
search:
  engine: vec
  threshold: 0.25
duplicate:
  threshold: 0.9
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test-memories.db", cfg.Database.Path)
	assert.False(t, cfg.UI.Enabled)
	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, "nomic-embed-text", cfg.Embedding.Model)
	assert.Equal(t, 768, cfg.Embedding.Dimensions)
	assert.Equal(t, "vec", cfg.Search.Engine)
	assert.Equal(t, 0.25, cfg.Search.Threshold)
	assert.Equal(t, 0.9, cfg.Duplicate.Threshold)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("MEMORY_EMBEDDING_DIMENSIONS", "512")
	t.Setenv("MEMORY_SEARCH_THRESHOLD", "0.3")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Embedding.Dimensions)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Path: "/tmp/x.db"},
		UI:        UIConfig{Enabled: true, Listen: "not-an-address"},
		Embedding: EmbeddingConfig{Provider: "telepathy", Dimensions: 0},
		Search:    SearchConfig{Engine: "oracle", Threshold: 2, MaxLimit: 0},
		Duplicate: DuplicateConfig{Threshold: -3},
		List:      ListConfig{MaxLimit: 0},
	}

	errs := cfg.Validate()
	// listen, provider, dimensions, engine, search threshold, duplicate
	// threshold, search max_limit, list max_limit
	assert.Len(t, errs, 8)
}

func TestValidateProviderCredentials(t *testing.T) {
	tests := []struct {
		name      string
		embedding EmbeddingConfig
		wantErrs  int
	}{
		{"mock needs nothing", EmbeddingConfig{Provider: "mock", Dimensions: 384}, 0},
		{"openai needs model and key", EmbeddingConfig{Provider: "openai", Dimensions: 384}, 2},
		{"google needs model and key", EmbeddingConfig{Provider: "google", Dimensions: 384}, 2},
		{"ollama needs model only", EmbeddingConfig{Provider: "ollama", Dimensions: 384}, 1},
		{"ollama complete", EmbeddingConfig{Provider: "ollama", Model: "nomic-embed-text", Dimensions: 768}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Database:  DatabaseConfig{Path: "/tmp/x.db"},
				UI:        UIConfig{Enabled: false},
				Embedding: tt.embedding,
				Search:    SearchConfig{Engine: "scan", Threshold: 0.5, MaxLimit: 50},
				Duplicate: DuplicateConfig{Threshold: 0.7},
				List:      ListConfig{MaxLimit: 100},
			}
			assert.Len(t, cfg.Validate(), tt.wantErrs)
		})
	}
}

func TestUIDisabledSkipsListenValidation(t *testing.T) {
	cfg := &Config{
		Database:  DatabaseConfig{Path: "/tmp/x.db"},
		UI:        UIConfig{Enabled: false, Listen: ""},
		Embedding: EmbeddingConfig{Provider: "mock", Dimensions: 384},
		Search:    SearchConfig{Engine: "scan", Threshold: 0.5, MaxLimit: 50},
		Duplicate: DuplicateConfig{Threshold: 0.7},
		List:      ListConfig{MaxLimit: 100},
	}
	assert.Empty(t, cfg.Validate())
}

func TestDefaultConfigIsCommentedTemplate(t *testing.T) {
	assert.Contains(t, string(DefaultConfigYAML), "embedding:")
	assert.Contains(t, string(DefaultConfigYAML), "provider: mock")
}
