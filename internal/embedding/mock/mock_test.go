// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package mock_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/mock"
)

func TestEmbedIsDeterministic(t *testing.T) {
	p := mock.New(384)
	ctx := context.Background()

	a, err := p.Embed(ctx, "the user prefers tea over coffee")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "the user prefers tea over coffee")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 384)
}

func TestDifferentTextDiffers(t *testing.T) {
	p := mock.New(32)
	ctx := context.Background()

	a, err := p.Embed(ctx, "alpha")
	require.NoError(t, err)
	b, err := p.Embed(ctx, "beta")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestEmbedReturnsUnitVector(t *testing.T) {
	p := mock.New(64)

	vec, err := p.Embed(context.Background(), "normalise me")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestEmbedRejectsBlankInput(t *testing.T) {
	p := mock.New(16)

	_, err := p.Embed(context.Background(), "   ")
	require.Error(t, err)
}
