// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package openai embeds text through the OpenAI Embeddings API.
package openai

import (
	"context"

	openaisdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Config holds OpenAI embedder configuration.
type Config struct {
	APIKey     string
	Model      string
	Dimensions int
	BaseURL    string // optional, useful for testing against a mock server
}

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

// Provider implements embedding.Provider using the OpenAI Embeddings API.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI embedder. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, memerr.New(memerr.CodeConfigValidateInvalidValue, "openai: missing api_key in config")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openaisdk.NewClient(opts...)
	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string    { return "openai" }
func (p *Provider) Model() string   { return p.config.Model }
func (p *Provider) Dimensions() int { return p.config.Dimensions }
func (p *Provider) Close() error    { return nil }

func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateInput(text); err != nil {
		return nil, err
	}

	resp, err := p.client.Embeddings.New(ctx, openaisdk.EmbeddingNewParams{
		Model: openaisdk.EmbeddingModel(p.config.Model),
		Input: openaisdk.EmbeddingNewParamsInputUnion{
			OfString: param.NewOpt(text),
		},
		Dimensions:     param.NewOpt(int64(p.config.Dimensions)),
		EncodingFormat: openaisdk.EmbeddingNewParamsEncodingFormatFloat,
	})
	if err != nil {
		return nil, memerr.Wrap(err, memerr.CodeEmbeddingGenerateFailure, "openai embedding request failed",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}
	if len(resp.Data) == 0 {
		return nil, memerr.New(memerr.CodeEmbeddingGenerateFailure, "openai returned no embedding data",
			memerr.FieldProvider(p.Name()), memerr.FieldModel(p.config.Model))
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}

	if err := embedding.CheckDimensions(vec, p.config.Dimensions, p.Name(), p.config.Model); err != nil {
		return nil, err
	}
	return vec, nil
}
