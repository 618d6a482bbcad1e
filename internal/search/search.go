// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package search ranks stored embeddings against a query vector. The default
// engine is an exact brute-force cosine scan; an approximate vec0 KNN engine
// can be swapped in behind the same interface.
package search

import (
	"context"
	"math"
	"sort"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Match is one ranked result: a memory ID and its cosine similarity to the
// query, in [-1, 1].
type Match struct {
	ID         int64
	Similarity float64
}

// Index ranks stored vectors by similarity to query. Results hold at most k
// matches with Similarity >= minSimilarity, ordered by similarity descending;
// ties break toward the smaller ID.
type Index interface {
	Rank(ctx context.Context, query []float32, k int, minSimilarity float64) ([]Match, error)
}

// EmbeddingSource supplies the vectors a scan ranks over.
type EmbeddingSource interface {
	AllEmbeddings(ctx context.Context) ([]store.Embedding, error)
}

// Cosine returns the cosine similarity of a and b, or 0 when either vector
// has zero magnitude.
func Cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Compile-time interface check.
var _ Index = (*Scan)(nil)

// Scan is the exact engine: it computes cosine similarity against every
// stored vector on each query. Exact and dependency-free, and fast enough for
// the collection sizes a single agent accumulates.
type Scan struct {
	source EmbeddingSource
}

func NewScan(source EmbeddingSource) *Scan {
	return &Scan{source: source}
}

func (s *Scan) Rank(ctx context.Context, query []float32, k int, minSimilarity float64) ([]Match, error) {
	if k <= 0 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "result limit must be positive, got %d", k)
	}

	embeddings, err := s.source.AllEmbeddings(ctx)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(embeddings))
	for _, e := range embeddings {
		sim := Cosine(query, e.Vector)
		if sim >= minSimilarity {
			matches = append(matches, Match{ID: e.ID, Similarity: sim})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Similarity != matches[j].Similarity {
			return matches[i].Similarity > matches[j].Similarity
		}
		return matches[i].ID < matches[j].ID
	})

	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
