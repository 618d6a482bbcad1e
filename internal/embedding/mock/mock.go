// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package mock provides a deterministic offline embedder. Vectors are derived
// from a hash of the input text, so identical text always embeds to the same
// unit vector and similar text does not cluster. Useful for tests and for
// running without any model backend.
package mock

import (
	"context"
	"hash/fnv"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
)

// Compile-time interface check.
var _ embedding.Provider = (*Provider)(nil)

type Provider struct {
	dimensions int
}

func New(dimensions int) *Provider {
	return &Provider{dimensions: dimensions}
}

func (p *Provider) Name() string    { return "mock" }
func (p *Provider) Model() string   { return "hash-lcg" }
func (p *Provider) Dimensions() int { return p.dimensions }
func (p *Provider) Close() error    { return nil }

func (p *Provider) Embed(_ context.Context, text string) ([]float32, error) {
	if err := embedding.ValidateInput(text); err != nil {
		return nil, err
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(text))
	state := h.Sum64()

	vec := make([]float32, p.dimensions)
	for i := range vec {
		// Numerical Recipes LCG constants.
		state = state*6364136223846793005 + 1442695040888963407
		// Top 32 bits mapped into [-1, 1).
		vec[i] = float32(int32(state>>32)) / (1 << 31)
	}

	return embedding.Normalize(vec), nil
}
