// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package memory_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/embedding/mock"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/search"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store/sqlite"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

const testDims = 64

func newTestService(t *testing.T) *memory.Service {
	t.Helper()

	st, err := sqlite.NewMemoryStore(filepath.Join(t.TempDir(), "memories.db"), testDims)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	return memory.NewService(st, search.NewScan(st), mock.New(testDims), memory.Config{
		SearchThreshold:    0.5,
		DuplicateThreshold: 0.7,
		SearchMaxLimit:     50,
		ListMaxLimit:       100,
		Engine:             "scan",
	}, nil)
}

func TestCreateAndGet(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "the user's cat is named Miso", map[string]any{"source": "chat"}, false)
	require.NoError(t, err)
	require.Positive(t, mem.ID)

	got, err := svc.Get(ctx, mem.ID)
	require.NoError(t, err)
	assert.Equal(t, "the user's cat is named Miso", got.Content)
	assert.Equal(t, "chat", got.Metadata["source"])
}

func TestCreateRejectsBlankContent(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), "  \n\t ", nil, false)
	require.Error(t, err)
	assert.True(t, memerr.IsInvalidInput(err))
}

func TestCreateDetectsExactDuplicate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "the user works remotely on Fridays", nil, false)
	require.NoError(t, err)

	// Identical text embeds identically: similarity 1.0 > threshold.
	_, err = svc.Create(ctx, "the user works remotely on Fridays", nil, false)
	require.Error(t, err)
	assert.True(t, memerr.IsConflict(err))

	dup, ok := memory.AsDuplicate(err)
	require.True(t, ok)
	require.Len(t, dup.Similar, 1)
	assert.Equal(t, first.ID, dup.Similar[0].ID)
	assert.Equal(t, "the user works remotely on Fridays", dup.Similar[0].Content)
	assert.InDelta(t, 1.0, dup.Similar[0].Similarity, 1e-6)
}

func TestCreateForceBypassesGuard(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, "a fact worth writing twice", nil, false)
	require.NoError(t, err)

	second, err := svc.Create(ctx, "a fact worth writing twice", nil, true)
	require.NoError(t, err)
	assert.Greater(t, second.ID, first.ID)
}

func TestCreateAllowsDistinctContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	// Hash-derived vectors for different text are effectively orthogonal.
	_, err := svc.Create(ctx, "likes hiking", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "allergic to peanuts", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "speaks French", nil, false)
	require.NoError(t, err)
}

func TestConcurrentDuplicateWritesAdmitOne(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)

	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, "the same fact written by racing writers", nil, false)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case memerr.IsConflict(err):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	assert.Equal(t, writers-1, conflicts)
}

func TestGetMissing(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Get(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, memerr.CodeMemoryGetNotFound, memerr.CodeOf(err))
}

func TestSearchFindsStoredContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "the deployment window is Tuesday night", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "the user dislikes cilantro", nil, false)
	require.NoError(t, err)

	// The mock embedder only matches identical text, so query verbatim.
	results, err := svc.Search(ctx, "the deployment window is Tuesday night", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, mem.ID, results[0].Memory.ID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
}

func TestSearchHonorsThresholdOverride(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "first fact", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "second fact", nil, false)
	require.NoError(t, err)

	// Threshold -1 admits everything.
	threshold := -1.0
	results, err := svc.Search(ctx, "unrelated query text", 10, &threshold)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Search(ctx, "", 10, nil)
	require.Error(t, err)

	_, err = svc.Search(ctx, "q", 0, nil)
	require.Error(t, err)

	bad := 1.5
	_, err = svc.Search(ctx, "q", 10, &bad)
	require.Error(t, err)
}

func TestUpdateContentReembeds(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "old fact", nil, false)
	require.NoError(t, err)

	newContent := "corrected fact"
	updated, err := svc.Update(ctx, memory.UpdateRequest{ID: mem.ID, Content: &newContent})
	require.NoError(t, err)
	assert.Equal(t, "corrected fact", updated.Content)
	assert.NotEqual(t, mem.Embedding, updated.Embedding)
	assert.True(t, updated.UpdatedAt.After(mem.UpdatedAt))

	// The new text is findable, the old one is gone.
	results, err := svc.Search(ctx, "corrected fact", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = svc.Search(ctx, "old fact", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestUpdateMetadataOnlyKeepsEmbedding(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "stable fact", map[string]any{"v": float64(1)}, false)
	require.NoError(t, err)

	updated, err := svc.Update(ctx, memory.UpdateRequest{ID: mem.ID, Metadata: map[string]any{"v": float64(2)}})
	require.NoError(t, err)
	assert.Equal(t, mem.Embedding, updated.Embedding)
	assert.Equal(t, float64(2), updated.Metadata["v"])
	assert.Equal(t, "stable fact", updated.Content)
}

func TestUpdateSameContentKeepsEmbedding(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "unchanged fact", nil, false)
	require.NoError(t, err)

	same := "unchanged fact"
	updated, err := svc.Update(ctx, memory.UpdateRequest{ID: mem.ID, Content: &same, Metadata: map[string]any{"touched": true}})
	require.NoError(t, err)
	assert.Equal(t, mem.Embedding, updated.Embedding)
}

func TestUpdateMissingAndEmptyRequest(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	content := "x"
	_, err := svc.Update(ctx, memory.UpdateRequest{ID: 404, Content: &content})
	require.Error(t, err)
	assert.True(t, memerr.IsNotFound(err))

	_, err = svc.Update(ctx, memory.UpdateRequest{ID: 1})
	require.Error(t, err)
	assert.True(t, memerr.IsInvalidInput(err))
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "ephemeral", nil, false)
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, mem.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = svc.Delete(ctx, mem.ID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestDeletedMemoryLeavesSearch(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	mem, err := svc.Create(ctx, "soon to be removed", nil, false)
	require.NoError(t, err)

	_, err = svc.Delete(ctx, mem.ID)
	require.NoError(t, err)

	results, err := svc.Search(ctx, "soon to be removed", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, results)

	// And the same text can be written again without a conflict.
	_, err = svc.Create(ctx, "soon to be removed", nil, false)
	require.NoError(t, err)
}

func TestListClampsLimit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "only entry", nil, false)
	require.NoError(t, err)

	page, err := svc.List(ctx, 1, 10_000)
	require.NoError(t, err)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 1, page.Total)
}

func TestStats(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "counted fact", nil, false)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
	assert.Equal(t, "mock", stats.Provider)
	assert.Equal(t, testDims, stats.Dimensions)
	assert.Equal(t, "scan", stats.Engine)
	assert.Positive(t, stats.SizeBytes)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestService(t)
	ctx := context.Background()

	_, err := src.Create(ctx, "first exported fact", map[string]any{"k": "v"}, false)
	require.NoError(t, err)
	_, err = src.Create(ctx, "second exported fact", nil, false)
	require.NoError(t, err)

	snap, err := src.Export(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Records, 2)
	assert.NotEmpty(t, snap.ID)
	// Oldest first.
	assert.Equal(t, "first exported fact", snap.Records[0].Content)

	dst := newTestService(t)
	result, err := dst.Import(ctx, snap, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	assert.Empty(t, result.Errors)

	results, err := dst.Search(ctx, "first exported fact", 10, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "v", results[0].Memory.Metadata["k"])
}

func TestImportClearExisting(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "pre-existing fact", nil, false)
	require.NoError(t, err)

	snap := &memory.Snapshot{Records: []memory.SnapshotRecord{{Content: "imported fact"}}}
	result, err := svc.Import(ctx, snap, true)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cleared)
	assert.Equal(t, 1, result.Imported)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Count)
}

func TestImportBypassesDuplicateGuardAndCollectsErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "duplicated fact", nil, false)
	require.NoError(t, err)

	snap := &memory.Snapshot{Records: []memory.SnapshotRecord{
		{Content: "duplicated fact"}, // would conflict through Create
		{Content: "   "},             // invalid, collected not fatal
		{Content: "fresh fact"},
	}}

	result, err := svc.Import(ctx, snap, false)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Index)
}

func TestClear(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "a", nil, false)
	require.NoError(t, err)
	_, err = svc.Create(ctx, "b", nil, false)
	require.NoError(t, err)

	removed, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.Count)
}

func TestWarmUp(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.WarmUp(context.Background()))
}

func TestHealthReflectsEmbedding(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	assert.True(t, svc.Health().Available)

	_, err := svc.Create(ctx, "a successful embed keeps the provider healthy", nil, false)
	require.NoError(t, err)

	m := svc.Health()
	assert.True(t, m.Available)
	assert.Zero(t, m.FailureCount)
}
