// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/ollama"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestEmbedDecodesAndNormalises(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/embeddings", r.URL.Path)

		var req struct {
			Model  string `json:"model"`
			Prompt string `json:"prompt"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		assert.Equal(t, "hello", req.Prompt)

		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{3, 4, 0}})
	})

	p, err := ollama.New(ollama.Config{Endpoint: srv.URL, Model: "nomic-embed-text", Dimensions: 3})
	require.NoError(t, err)

	vec, err := p.Embed(context.Background(), "hello")
	require.NoError(t, err)
	require.Len(t, vec, 3)
	assert.InDelta(t, 0.6, vec[0], 1e-6)
	assert.InDelta(t, 0.8, vec[1], 1e-6)
}

func TestEmbedRejectsDimensionMismatch(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"embedding": []float64{1, 2}})
	})

	p, err := ollama.New(ollama.Config{Endpoint: srv.URL, Model: "nomic-embed-text", Dimensions: 3})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, memerr.CodeEmbeddingDimensionMismatch, memerr.CodeOf(err))
}

func TestEmbedSurfacesServerError(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	})

	p, err := ollama.New(ollama.Config{Endpoint: srv.URL, Model: "missing-model", Dimensions: 3})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, memerr.CodeEmbeddingGenerateFailure, memerr.CodeOf(err))
}

func TestEmbedUnreachableServerIsUnavailable(t *testing.T) {
	p, err := ollama.New(ollama.Config{Endpoint: "http://127.0.0.1:1", Model: "nomic-embed-text", Dimensions: 3})
	require.NoError(t, err)

	_, err = p.Embed(context.Background(), "hello")
	require.Error(t, err)
	assert.True(t, memerr.IsUnavailable(err))
}

func TestNewRequiresModel(t *testing.T) {
	_, err := ollama.New(ollama.Config{Endpoint: "http://localhost:11434"})
	require.Error(t, err)
}
