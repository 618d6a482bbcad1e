// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package embedding defines the text-to-vector interface and shared helpers.
// Concrete providers live in subpackages: openai, google, ollama, and mock.
package embedding

import (
	"context"
	"math"
	"strings"

	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Provider turns text into a fixed-dimension embedding vector. Embed must be
// deterministic per provider/model: the same text yields the same vector.
type Provider interface {
	Name() string
	Model() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	Close() error
}

// ValidateInput rejects text no provider can embed.
func ValidateInput(text string) error {
	if strings.TrimSpace(text) == "" {
		return memerr.New(memerr.CodeEmbeddingInputInvalid, "text to embed must not be empty")
	}
	return nil
}

// CheckDimensions verifies a provider response against the expected width.
func CheckDimensions(vec []float32, want int, provider, model string) error {
	if len(vec) != want {
		return memerr.New(memerr.CodeEmbeddingDimensionMismatch,
			"provider returned unexpected embedding width",
			memerr.FieldProvider(provider),
			memerr.FieldModel(model),
			memerr.Field("got", len(vec)),
			memerr.Field("want", want),
		)
	}
	return nil
}

// Normalize scales vec to unit length in place and returns it. Zero vectors
// are returned unchanged.
func Normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := 1 / math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) * scale)
	}
	return vec
}
