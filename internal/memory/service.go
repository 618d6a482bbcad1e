// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package memory coordinates the store, the similarity engine, and the
// embedding provider behind one API used by every front end.
package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/search"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/health"
)

// duplicateCandidates caps how many colliding memories a conflict reports.
const duplicateCandidates = 5

// Config tunes the service thresholds and limits.
type Config struct {
	// SearchThreshold is the default minimum similarity for search results.
	SearchThreshold float64
	// DuplicateThreshold triggers a write conflict when an existing memory
	// is strictly more similar than this.
	DuplicateThreshold float64
	// SearchMaxLimit caps the result count of a single search.
	SearchMaxLimit int
	// ListMaxLimit caps the page size of a listing.
	ListMaxLimit int
	// Engine names the active similarity engine, for stats.
	Engine string
}

// Service is the single coordinator over the memory collection. Writes are
// serialised through mu so the duplicate check and its insert are atomic with
// respect to concurrent writers; reads take the shared side.
type Service struct {
	mu       sync.RWMutex
	store    store.MemoryStore
	index    search.Index
	embedder embedding.Provider
	cfg      Config
	logger   *slog.Logger
	health   *health.Tracker
}

func NewService(st store.MemoryStore, index search.Index, embedder embedding.Provider, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:    st,
		index:    index,
		embedder: embedder,
		cfg:      cfg,
		logger:   logger.With("component", "memory"),
		health:   health.NewTracker(health.DefaultCooldown),
	}
}

// embed routes every provider call through the health tracker so the /health
// endpoint reflects embedding availability.
func (s *Service) embed(ctx context.Context, text string) ([]float32, error) {
	vector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		s.health.RecordFailure()
		return nil, err
	}
	s.health.RecordSuccess()
	return vector, nil
}

// Health reports the embedding provider health observed by this service.
func (s *Service) Health() health.Metrics {
	return s.health.Snapshot()
}

// SimilarMemory is one colliding record reported by a duplicate conflict.
type SimilarMemory struct {
	ID         int64   `json:"id"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// DuplicateError reports that a write collided with existing memories above
// the duplicate threshold. The caller decides whether to update one of the
// colliding records or drop the write.
type DuplicateError struct {
	Similar []SimilarMemory
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("content collides with %d existing memories", len(e.Similar))
}

// AsDuplicate extracts the duplicate detail from an error chain, if present.
func AsDuplicate(err error) (*DuplicateError, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup, true
	}
	return nil, false
}

// SearchResult pairs a memory with its similarity to the query.
type SearchResult struct {
	Memory     *store.Memory
	Similarity float64
}

// UpdateRequest describes a partial update. Nil Content keeps the stored
// text; nil Metadata keeps the stored document.
type UpdateRequest struct {
	ID       int64
	Content  *string
	Metadata map[string]any
}

// Stats extends the store stats with the embedding and engine identity.
type Stats struct {
	Count           int
	SizeBytes       int64
	OldestCreatedAt time.Time
	NewestUpdatedAt time.Time
	Provider        string
	Model           string
	Dimensions      int
	Engine          string
}

// WarmUp embeds a probe string so provider startup cost is paid before the
// first real request.
func (s *Service) WarmUp(ctx context.Context) error {
	start := time.Now()
	if _, err := s.embed(ctx, "warm-up probe"); err != nil {
		return memerr.Wrapf(err, memerr.CodeEmbeddingProviderUnavailable, "warming up embedding provider")
	}
	s.logger.Info("embedding provider ready",
		"provider", s.embedder.Name(),
		"model", s.embedder.Model(),
		"took", time.Since(start))
	return nil
}

// Create embeds content and stores it as a new memory. When an existing
// memory is strictly more similar than the duplicate threshold the write is
// rejected with a DuplicateError listing the collisions; force skips the
// check. The embedding is computed before the write lock; the duplicate
// check and the insert run inside it, so two concurrent writes of
// near-identical text cannot both pass the check.
func (s *Service) Create(ctx context.Context, content string, metadata map[string]any, force bool) (*store.Memory, error) {
	if err := validateContent(content); err != nil {
		return nil, err
	}

	vector, err := s.embed(ctx, content)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !force {
		if err := s.checkDuplicate(ctx, vector); err != nil {
			return nil, err
		}
	}

	mem := &store.Memory{
		Content:   content,
		Embedding: vector,
		Metadata:  metadata,
	}
	if err := s.store.Create(ctx, mem); err != nil {
		return nil, err
	}

	s.logger.Info("memory created", "id", mem.ID, "content_len", len(content))
	return mem, nil
}

// checkDuplicate must run with the write lock held.
func (s *Service) checkDuplicate(ctx context.Context, vector []float32) error {
	matches, err := s.index.Rank(ctx, vector, duplicateCandidates, s.cfg.DuplicateThreshold)
	if err != nil {
		return err
	}

	// The threshold itself is allowed; only strictly closer matches collide.
	var colliding []search.Match
	for _, m := range matches {
		if m.Similarity > s.cfg.DuplicateThreshold {
			colliding = append(colliding, m)
		}
	}
	if len(colliding) == 0 {
		return nil
	}

	ids := make([]int64, len(colliding))
	for i, m := range colliding {
		ids[i] = m.ID
	}
	mems, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return err
	}

	simByID := make(map[int64]float64, len(colliding))
	for _, m := range colliding {
		simByID[m.ID] = m.Similarity
	}

	similar := make([]SimilarMemory, 0, len(mems))
	for _, mem := range mems {
		similar = append(similar, SimilarMemory{
			ID:         mem.ID,
			Content:    mem.Content,
			Similarity: simByID[mem.ID],
		})
	}

	return memerr.Wrap(&DuplicateError{Similar: similar},
		memerr.CodeMemoryWriteConflict, "similar memory already stored",
		memerr.Field("collisions", len(similar)))
}

// Get returns one memory by ID.
func (s *Service) Get(ctx context.Context, id int64) (*store.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	mem, err := s.store.Get(ctx, id)
	if err != nil {
		if memerr.IsNotFound(err) {
			return nil, memerr.Errorf(memerr.CodeMemoryGetNotFound, "memory %d not found", id)
		}
		return nil, err
	}
	return mem, nil
}

// Update rewrites a memory in place. The content is re-embedded only when it
// actually changed; a metadata-only update keeps the stored vector. The
// duplicate guard does not apply: updating is how an agent resolves a
// conflict.
func (s *Service) Update(ctx context.Context, req UpdateRequest) (*store.Memory, error) {
	if req.Content == nil && req.Metadata == nil {
		return nil, memerr.New(memerr.CodeMemoryValidateInvalidInput, "update needs content or metadata")
	}
	if req.Content != nil {
		if err := validateContent(*req.Content); err != nil {
			return nil, err
		}
	}

	// The embedding depends only on the new text, so it can be computed
	// before taking the write lock.
	var vector []float32
	if req.Content != nil {
		var err error
		vector, err = s.embed(ctx, *req.Content)
		if err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	mem, err := s.store.Get(ctx, req.ID)
	if err != nil {
		if memerr.IsNotFound(err) {
			return nil, memerr.Errorf(memerr.CodeMemoryGetNotFound, "memory %d not found", req.ID)
		}
		return nil, err
	}

	reembedded := false
	if req.Content != nil && *req.Content != mem.Content {
		mem.Content = *req.Content
		mem.Embedding = vector
		reembedded = true
	}
	if req.Metadata != nil {
		mem.Metadata = req.Metadata
	}

	if err := s.store.Update(ctx, mem); err != nil {
		return nil, err
	}

	s.logger.Info("memory updated", "id", mem.ID, "reembedded", reembedded)
	return mem, nil
}

// Delete removes a memory. Deleting an absent ID returns false without error.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if deleted {
		s.logger.Info("memory deleted", "id", id)
	}
	return deleted, nil
}

// List returns one page of memories, newest first. Limit is clamped to the
// configured maximum.
func (s *Service) List(ctx context.Context, page, limit int) (*store.Page, error) {
	if page < 1 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "page must be >= 1, got %d", page)
	}
	if limit < 1 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "limit must be >= 1, got %d", limit)
	}
	if limit > s.cfg.ListMaxLimit {
		limit = s.cfg.ListMaxLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.List(ctx, page, limit)
}

// Search embeds the query and returns the memories ranked by similarity.
// A nil threshold uses the configured default; limit is clamped to the
// configured maximum.
func (s *Service) Search(ctx context.Context, query string, limit int, threshold *float64) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, memerr.New(memerr.CodeMemoryValidateInvalidInput, "search query must not be empty")
	}
	if limit < 1 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "limit must be >= 1, got %d", limit)
	}
	if limit > s.cfg.SearchMaxLimit {
		limit = s.cfg.SearchMaxLimit
	}

	minSim := s.cfg.SearchThreshold
	if threshold != nil {
		if *threshold < -1 || *threshold > 1 {
			return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "threshold must be in [-1, 1], got %v", *threshold)
		}
		minSim = *threshold
	}

	vector, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches, err := s.index.Rank(ctx, vector, limit, minSim)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, nil
	}

	ids := make([]int64, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}
	mems, err := s.store.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	simByID := make(map[int64]float64, len(matches))
	for _, m := range matches {
		simByID[m.ID] = m.Similarity
	}

	results := make([]SearchResult, 0, len(mems))
	for _, mem := range mems {
		results = append(results, SearchResult{Memory: mem, Similarity: simByID[mem.ID]})
	}
	return results, nil
}

// Clear removes every memory and reports how many were removed.
func (s *Service) Clear(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed, err := s.store.Clear(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.Info("memories cleared", "removed", removed)
	return removed, nil
}

// Stats reports collection, storage, and engine information.
func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}

	return &Stats{
		Count:           st.Count,
		SizeBytes:       st.SizeBytes,
		OldestCreatedAt: st.OldestCreatedAt,
		NewestUpdatedAt: st.NewestUpdatedAt,
		Provider:        s.embedder.Name(),
		Model:           s.embedder.Model(),
		Dimensions:      s.embedder.Dimensions(),
		Engine:          s.cfg.Engine,
	}, nil
}

// Snapshot is a portable export of the collection. Embeddings are omitted;
// an import regenerates them with whatever provider is then configured.
type Snapshot struct {
	ID         string           `json:"id" yaml:"id"`
	ExportedAt time.Time        `json:"exported_at" yaml:"exported_at"`
	Provider   string           `json:"provider" yaml:"provider"`
	Model      string           `json:"model" yaml:"model"`
	Records    []SnapshotRecord `json:"records" yaml:"records"`
}

// SnapshotRecord is one exported memory.
type SnapshotRecord struct {
	ID        int64          `json:"id" yaml:"id"`
	Content   string         `json:"content" yaml:"content"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Export walks the whole collection into a snapshot, oldest first.
func (s *Service) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		ID:         uuid.NewString(),
		ExportedAt: time.Now().UTC(),
		Provider:   s.embedder.Name(),
		Model:      s.embedder.Model(),
	}

	for page := 1; ; page++ {
		p, err := s.store.List(ctx, page, s.cfg.ListMaxLimit)
		if err != nil {
			return nil, err
		}
		for _, mem := range p.Items {
			snap.Records = append(snap.Records, SnapshotRecord{
				ID:        mem.ID,
				Content:   mem.Content,
				Metadata:  mem.Metadata,
				CreatedAt: mem.CreatedAt,
				UpdatedAt: mem.UpdatedAt,
			})
		}
		if page >= p.TotalPages || len(p.Items) == 0 {
			break
		}
	}

	// List is newest first; snapshots read better oldest first.
	for i, j := 0, len(snap.Records)-1; i < j; i, j = i+1, j-1 {
		snap.Records[i], snap.Records[j] = snap.Records[j], snap.Records[i]
	}

	return snap, nil
}

// ImportResult reports what an import achieved. Failed records are skipped,
// not fatal; each failure keeps its snapshot index.
type ImportResult struct {
	Imported int
	Cleared  int
	Errors   []ImportError
}

// ImportError ties a failure to the snapshot record that caused it.
type ImportError struct {
	Index   int
	Content string
	Err     string
}

// Import loads a snapshot into the store, re-embedding every record with the
// active provider. The duplicate guard is bypassed: a snapshot is trusted as
// already deduplicated. IDs are reassigned.
func (s *Service) Import(ctx context.Context, snap *Snapshot, clearExisting bool) (*ImportResult, error) {
	if snap == nil {
		return nil, memerr.New(memerr.CodeMemoryValidateInvalidInput, "snapshot must not be nil")
	}

	// Embed before taking the write lock; provider calls dominate import
	// time and must not starve readers.
	vectors := make([][]float32, len(snap.Records))
	result := &ImportResult{}
	for i, rec := range snap.Records {
		if err := validateContent(rec.Content); err != nil {
			result.Errors = append(result.Errors, importError(i, rec.Content, err))
			continue
		}
		vec, err := s.embed(ctx, rec.Content)
		if err != nil {
			result.Errors = append(result.Errors, importError(i, rec.Content, err))
			continue
		}
		vectors[i] = vec
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if clearExisting {
		cleared, err := s.store.Clear(ctx)
		if err != nil {
			return nil, err
		}
		result.Cleared = cleared
	}

	for i, rec := range snap.Records {
		if vectors[i] == nil {
			continue
		}
		mem := &store.Memory{
			Content:   rec.Content,
			Embedding: vectors[i],
			Metadata:  rec.Metadata,
		}
		if err := s.store.Create(ctx, mem); err != nil {
			result.Errors = append(result.Errors, importError(i, rec.Content, err))
			continue
		}
		result.Imported++
	}

	s.logger.Info("snapshot imported",
		"snapshot", snap.ID,
		"imported", result.Imported,
		"failed", len(result.Errors),
		"cleared", result.Cleared)
	return result, nil
}

func importError(index int, content string, err error) ImportError {
	const preview = 80
	if len(content) > preview {
		content = content[:preview]
	}
	return ImportError{Index: index, Content: content, Err: err.Error()}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return memerr.New(memerr.CodeMemoryValidateInvalidInput, "memory content must not be empty")
	}
	return nil
}
