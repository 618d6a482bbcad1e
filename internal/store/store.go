// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package store

import (
	"context"
	"time"
)

// Memory is the persisted record: content, its embedding, and opaque metadata.
// IDs are assigned by the store, monotonically increasing, and never reused.
type Memory struct {
	ID        int64
	Content   string
	Embedding []float32
	Metadata  map[string]any
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Embedding is a stored vector keyed by its memory ID, as returned by
// AllEmbeddings for brute-force similarity scans.
type Embedding struct {
	ID     int64
	Vector []float32
}

// Page is one page of a paginated listing. TotalPages is always at least 1;
// pages past the end have empty Items with Total/TotalPages unchanged.
type Page struct {
	Items      []*Memory
	Total      int
	Page       int
	TotalPages int
}

// Stats summarises the physical state of the store.
type Stats struct {
	Count           int
	SizeBytes       int64
	OldestCreatedAt time.Time
	NewestUpdatedAt time.Time
}

// MemoryStore is the durable record store. Timestamps are owned by the
// implementation: Create sets CreatedAt == UpdatedAt, Update refreshes
// UpdatedAt. Every mutation lands the row and its vector atomically.
type MemoryStore interface {
	// Create inserts mem and fills ID, CreatedAt, and UpdatedAt.
	Create(ctx context.Context, mem *Memory) error

	Get(ctx context.Context, id int64) (*Memory, error)

	// GetMany returns the memories for the given IDs. Missing IDs are
	// silently skipped; order follows ids.
	GetMany(ctx context.Context, ids []int64) ([]*Memory, error)

	// Update rewrites content, embedding, and metadata for mem.ID and
	// refreshes mem.UpdatedAt.
	Update(ctx context.Context, mem *Memory) error

	// Delete removes a memory and its vector. Returns false when the ID
	// does not exist; that is not an error.
	Delete(ctx context.Context, id int64) (bool, error)

	// List returns memories ordered by ID descending (most recent first).
	List(ctx context.Context, page, limit int) (*Page, error)

	// Clear removes every memory atomically and reports how many.
	Clear(ctx context.Context) (int, error)

	Count(ctx context.Context) (int, error)

	// AllEmbeddings returns every stored vector, ordered by ID ascending.
	AllEmbeddings(ctx context.Context) ([]Embedding, error)

	Stats(ctx context.Context) (*Stats, error)

	Close() error
}
