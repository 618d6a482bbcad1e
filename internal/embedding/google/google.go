// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package google embeds text through the Gemini embedding API.
package google

import (
	"context"

	"google.golang.org/genai"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Config holds Gemini embedder configuration.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// Provider implements embedding.Provider using the Gemini API.
type Provider struct {
	client *genai.Client
	config Config
}

// New creates a new Gemini embedder. Returns an error if the API key is missing.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, memerr.New(memerr.CodeConfigValidateInvalidValue, "google: missing api_key in config",
			memerr.FieldProvider("google"))
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, memerr.Wrapf(err, memerr.CodeEmbeddingProviderUnavailable, "google: creating client")
	}

	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string    { return "google" }
func (p *Provider) Model() string   { return p.config.Model }
func (p *Provider) Dimensions() int { return p.config.Dimensions }
func (p *Provider) Close() error    { return nil }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateInput(text); err != nil {
		return nil, err
	}

	dims := int32(p.config.Dimensions)
	resp, err := p.client.Models.EmbedContent(ctx, p.config.Model,
		genai.Text(text),
		&genai.EmbedContentConfig{OutputDimensionality: &dims},
	)
	if err != nil {
		return nil, memerr.Wrap(err, memerr.CodeEmbeddingGenerateFailure, "gemini embedding request failed",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, memerr.New(memerr.CodeEmbeddingGenerateFailure, "gemini returned no embedding values",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}

	vec := resp.Embeddings[0].Values
	if err := embedding.CheckDimensions(vec, p.config.Dimensions, p.Name(), p.config.Model); err != nil {
		return nil, err
	}

	// Gemini vectors truncated by OutputDimensionality are not re-normalised
	// server side.
	return embedding.Normalize(vec), nil
}
