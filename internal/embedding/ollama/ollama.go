// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package ollama embeds text through a local Ollama server.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

const defaultEndpoint = "http://localhost:11434"

// Config holds Ollama embedder configuration.
type Config struct {
	Endpoint   string // defaults to http://localhost:11434
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// Provider implements embedding.Provider against the Ollama /api/embeddings
// endpoint.
type Provider struct {
	client   *http.Client
	endpoint string
	config   Config
}

func New(cfg Config) (*Provider, error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	endpoint = strings.TrimRight(endpoint, "/")

	if cfg.Model == "" {
		return nil, memerr.New(memerr.CodeConfigValidateInvalidValue, "ollama: missing model in config",
			memerr.FieldProvider("ollama"))
	}

	return &Provider{
		client:   &http.Client{Timeout: 60 * time.Second},
		endpoint: endpoint,
		config:   cfg,
	}, nil
}

func (p *Provider) Name() string    { return "ollama" }
func (p *Provider) Model() string   { return p.config.Model }
func (p *Provider) Dimensions() int { return p.config.Dimensions }
func (p *Provider) Close() error {
	p.client.CloseIdleConnections()
	return nil
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float64 `json:"embedding"`
}

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateInput(text); err != nil {
		return nil, err
	}

	body, err := json.Marshal(embedRequest{Model: p.config.Model, Prompt: text})
	if err != nil {
		return nil, memerr.Wrapf(err, memerr.CodeEmbeddingGenerateFailure, "ollama: encoding request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, memerr.Wrapf(err, memerr.CodeEmbeddingGenerateFailure, "ollama: building request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, memerr.Wrap(err, memerr.CodeEmbeddingProviderUnavailable, "ollama server unreachable",
			memerr.FieldProvider(p.Name()), memerr.Field("endpoint", p.endpoint))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, memerr.Wrap(
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))),
			memerr.CodeEmbeddingGenerateFailure, "ollama embedding request failed",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, memerr.Wrapf(err, memerr.CodeEmbeddingGenerateFailure, "ollama: decoding response")
	}
	if len(parsed.Embedding) == 0 {
		return nil, memerr.New(memerr.CodeEmbeddingGenerateFailure, "ollama returned no embedding values",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}

	vec := make([]float32, len(parsed.Embedding))
	for i, v := range parsed.Embedding {
		vec[i] = float32(v)
	}

	if err := embedding.CheckDimensions(vec, p.config.Dimensions, p.Name(), p.config.Model); err != nil {
		return nil, err
	}

	// Ollama embedding models do not guarantee unit vectors.
	return embedding.Normalize(vec), nil
}
