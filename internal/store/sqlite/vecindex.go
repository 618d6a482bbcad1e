// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package sqlite

import (
	"context"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/search"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Compile-time interface check.
var _ search.Index = (*VecIndex)(nil)

// VecIndex ranks memories with a vec0 KNN query instead of a full scan.
// Distances come back as L2; for unit vectors cosine similarity recovers as
// 1 - d^2/2. Providers that return non-normalised vectors should stay on the
// scan engine.
type VecIndex struct {
	store *MemoryStore
}

func NewVecIndex(store *MemoryStore) *VecIndex {
	return &VecIndex{store: store}
}

func (v *VecIndex) Rank(ctx context.Context, query []float32, k int, minSimilarity float64) ([]search.Match, error) {
	if k <= 0 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "result limit must be positive, got %d", k)
	}
	if err := v.store.checkDimension(query); err != nil {
		return nil, err
	}

	blob, err := sqlite_vec.SerializeFloat32(query)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "serializing query vector: %w", err)
	}

	const q = `SELECT rowid, distance FROM vec_memories WHERE embedding MATCH ? AND k = ? ORDER BY distance, rowid`
	rows, err := v.store.db.QueryContext(ctx, q, blob, k)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "running knn query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var matches []search.Match
	for rows.Next() {
		var (
			id       int64
			distance float64
		)
		if err := rows.Scan(&id, &distance); err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "scanning knn row: %w", err)
		}
		sim := 1 - distance*distance/2
		if sim >= minSimilarity {
			matches = append(matches, search.Match{ID: id, Similarity: sim})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "iterating knn rows: %w", err)
	}

	return matches, nil
}
