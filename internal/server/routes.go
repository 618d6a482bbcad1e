// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/health"
)

func (s *Server) registerRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.handleHealth)

	huma.Register(s.api, huma.Operation{
		OperationID: "create-memory",
		Method:      http.MethodPost,
		Path:        "/api/v1/memories",
		Summary:     "Store a memory",
		Description: "Stores new content. Responds 409 with the colliding memories when very similar content already exists.",
		Tags:        []string{"memories"},
	}, s.handleCreateMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-memories",
		Method:      http.MethodGet,
		Path:        "/api/v1/memories",
		Summary:     "List memories",
		Tags:        []string{"memories"},
	}, s.handleListMemories)

	huma.Register(s.api, huma.Operation{
		OperationID: "search-memories",
		Method:      http.MethodGet,
		Path:        "/api/v1/memories/search",
		Summary:     "Search memories by meaning",
		Tags:        []string{"memories"},
	}, s.handleSearchMemories)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-memory",
		Method:      http.MethodGet,
		Path:        "/api/v1/memories/{id}",
		Summary:     "Get a memory",
		Tags:        []string{"memories"},
	}, s.handleGetMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "update-memory",
		Method:      http.MethodPatch,
		Path:        "/api/v1/memories/{id}",
		Summary:     "Update a memory",
		Description: "Replaces content and/or metadata. Content changes are re-embedded.",
		Tags:        []string{"memories"},
	}, s.handleUpdateMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-memory",
		Method:      http.MethodDelete,
		Path:        "/api/v1/memories/{id}",
		Summary:     "Delete a memory",
		Tags:        []string{"memories"},
	}, s.handleDeleteMemory)

	huma.Register(s.api, huma.Operation{
		OperationID: "clear-memories",
		Method:      http.MethodDelete,
		Path:        "/api/v1/memories",
		Summary:     "Delete every memory",
		Tags:        []string{"memories"},
	}, s.handleClearMemories)

	huma.Register(s.api, huma.Operation{
		OperationID: "memory-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/stats",
		Summary:     "Collection statistics",
		Tags:        []string{"system"},
	}, s.handleStats)

	huma.Register(s.api, huma.Operation{
		OperationID: "export-memories",
		Method:      http.MethodGet,
		Path:        "/api/v1/export",
		Summary:     "Export the collection as a snapshot",
		Tags:        []string{"snapshots"},
	}, s.handleExport)

	huma.Register(s.api, huma.Operation{
		OperationID: "import-memories",
		Method:      http.MethodPost,
		Path:        "/api/v1/import",
		Summary:     "Import a snapshot",
		Description: "Re-embeds every record with the active provider. Records that fail are skipped and reported.",
		Tags:        []string{"snapshots"},
	}, s.handleImport)
}

// --- Request/Response types for huma ---

// MemoryView is the wire shape of one memory.
type MemoryView struct {
	ID        int64          `json:"id" doc:"Memory ID"`
	Content   string         `json:"content" doc:"Stored text"`
	Metadata  map[string]any `json:"metadata,omitempty" doc:"Opaque metadata"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func memoryViewOf(mem *store.Memory) MemoryView {
	return MemoryView{
		ID:        mem.ID,
		Content:   mem.Content,
		Metadata:  mem.Metadata,
		CreatedAt: mem.CreatedAt,
		UpdatedAt: mem.UpdatedAt,
	}
}

type healthOutput struct {
	Body struct {
		Status    string         `json:"status" example:"ok" doc:"Health status"`
		Embedding health.Metrics `json:"embedding" doc:"Embedding provider availability"`
	}
}

type createMemoryInput struct {
	Body struct {
		Content  string         `json:"content" minLength:"1" doc:"The fact to remember"`
		Metadata map[string]any `json:"metadata,omitempty" doc:"Opaque metadata"`
		Force    bool           `json:"force,omitempty" doc:"Store even when very similar content already exists"`
	}
}

// createMemoryOutput carries either the stored memory (201) or the conflict
// detail (409); Status selects which at runtime.
type createMemoryOutput struct {
	Status int
	Body   struct {
		Status          string                 `json:"status" example:"success" doc:"success or conflict_detected"`
		Memory          *MemoryView            `json:"memory,omitempty"`
		Message         string                 `json:"message,omitempty"`
		SimilarMemories []memory.SimilarMemory `json:"similar_memories,omitempty"`
	}
}

type getMemoryInput struct {
	ID int64 `path:"id"`
}
type getMemoryOutput struct {
	Body MemoryView
}

type listMemoriesInput struct {
	Page  int `query:"page" default:"1" minimum:"1"`
	Limit int `query:"limit" default:"50" minimum:"1"`
}
type listMemoriesOutput struct {
	Body struct {
		Memories   []MemoryView `json:"memories"`
		Total      int          `json:"total"`
		Page       int          `json:"page"`
		TotalPages int          `json:"total_pages"`
	}
}

type searchMemoriesInput struct {
	Query string `query:"q" minLength:"1" doc:"Natural language query"`
	Limit int    `query:"limit" default:"10" minimum:"1"`
	// Parsed by hand: huma query params cannot distinguish 0 from unset.
	Threshold string `query:"threshold" doc:"Minimum similarity in [-1, 1]; defaults to the configured threshold"`
}
type searchMemoriesOutput struct {
	Body struct {
		Results []SearchHit `json:"results"`
		Count   int         `json:"count"`
	}
}

// SearchHit is one search result with its similarity score.
type SearchHit struct {
	MemoryView
	Similarity float64 `json:"similarity" doc:"Cosine similarity to the query"`
}

type updateMemoryInput struct {
	ID   int64 `path:"id"`
	Body struct {
		Content  *string        `json:"content,omitempty" doc:"Replacement content"`
		Metadata map[string]any `json:"metadata,omitempty" doc:"Replacement metadata"`
	}
}
type updateMemoryOutput struct {
	Body MemoryView
}

type deleteMemoryInput struct {
	ID int64 `path:"id"`
}
type deleteMemoryOutput struct {
	Body struct {
		Deleted bool `json:"deleted" doc:"Whether the memory existed"`
	}
}

type clearMemoriesOutput struct {
	Body struct {
		Removed int `json:"removed" doc:"Number of memories removed"`
	}
}

type statsOutput struct {
	Body struct {
		TotalMemories   int        `json:"total_memories"`
		DatabaseBytes   int64      `json:"database_size_bytes"`
		Provider        string     `json:"embedding_provider"`
		Model           string     `json:"embedding_model"`
		Dimensions      int        `json:"embedding_dimensions"`
		Engine          string     `json:"search_engine"`
		OldestCreatedAt *time.Time `json:"oldest_created_at,omitempty"`
		NewestUpdatedAt *time.Time `json:"newest_updated_at,omitempty"`
	}
}

type exportOutput struct {
	Body memory.Snapshot
}

type importInput struct {
	Clear bool `query:"clear" doc:"Remove existing memories before importing"`
	Body  memory.Snapshot
}
type importOutput struct {
	Body struct {
		Imported int                  `json:"imported"`
		Cleared  int                  `json:"cleared"`
		Errors   []memory.ImportError `json:"errors,omitempty"`
	}
}

// --- Handlers ---

func (s *Server) handleHealth(_ context.Context, _ *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	out.Body.Embedding = s.svc.Health()
	return out, nil
}

func (s *Server) handleCreateMemory(ctx context.Context, input *createMemoryInput) (*createMemoryOutput, error) {
	out := &createMemoryOutput{}

	mem, err := s.svc.Create(ctx, input.Body.Content, input.Body.Metadata, input.Body.Force)
	if err != nil {
		if dup, ok := memory.AsDuplicate(err); ok {
			out.Status = http.StatusConflict
			out.Body.Status = "conflict_detected"
			out.Body.Message = "similar memory already stored; update one of these or drop the write"
			out.Body.SimilarMemories = dup.Similar
			return out, nil
		}
		return nil, apiError(err, "storing memory")
	}

	view := memoryViewOf(mem)
	out.Status = http.StatusCreated
	out.Body.Status = "success"
	out.Body.Memory = &view
	return out, nil
}

func (s *Server) handleGetMemory(ctx context.Context, input *getMemoryInput) (*getMemoryOutput, error) {
	mem, err := s.svc.Get(ctx, input.ID)
	if err != nil {
		return nil, apiError(err, "getting memory")
	}
	return &getMemoryOutput{Body: memoryViewOf(mem)}, nil
}

func (s *Server) handleListMemories(ctx context.Context, input *listMemoriesInput) (*listMemoriesOutput, error) {
	page, err := s.svc.List(ctx, input.Page, input.Limit)
	if err != nil {
		return nil, apiError(err, "listing memories")
	}

	out := &listMemoriesOutput{}
	out.Body.Memories = make([]MemoryView, 0, len(page.Items))
	for _, mem := range page.Items {
		out.Body.Memories = append(out.Body.Memories, memoryViewOf(mem))
	}
	out.Body.Total = page.Total
	out.Body.Page = page.Page
	out.Body.TotalPages = page.TotalPages
	return out, nil
}

func (s *Server) handleSearchMemories(ctx context.Context, input *searchMemoriesInput) (*searchMemoriesOutput, error) {
	var threshold *float64
	if input.Threshold != "" {
		v, err := strconv.ParseFloat(input.Threshold, 64)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("threshold must be a number")
		}
		threshold = &v
	}

	results, err := s.svc.Search(ctx, input.Query, input.Limit, threshold)
	if err != nil {
		return nil, apiError(err, "searching memories")
	}

	out := &searchMemoriesOutput{}
	out.Body.Results = make([]SearchHit, 0, len(results))
	for _, r := range results {
		out.Body.Results = append(out.Body.Results, SearchHit{
			MemoryView: memoryViewOf(r.Memory),
			Similarity: r.Similarity,
		})
	}
	out.Body.Count = len(out.Body.Results)
	return out, nil
}

func (s *Server) handleUpdateMemory(ctx context.Context, input *updateMemoryInput) (*updateMemoryOutput, error) {
	mem, err := s.svc.Update(ctx, memory.UpdateRequest{
		ID:       input.ID,
		Content:  input.Body.Content,
		Metadata: input.Body.Metadata,
	})
	if err != nil {
		return nil, apiError(err, "updating memory")
	}
	return &updateMemoryOutput{Body: memoryViewOf(mem)}, nil
}

func (s *Server) handleDeleteMemory(ctx context.Context, input *deleteMemoryInput) (*deleteMemoryOutput, error) {
	deleted, err := s.svc.Delete(ctx, input.ID)
	if err != nil {
		return nil, apiError(err, "deleting memory")
	}
	out := &deleteMemoryOutput{}
	out.Body.Deleted = deleted
	return out, nil
}

func (s *Server) handleClearMemories(ctx context.Context, _ *struct{}) (*clearMemoriesOutput, error) {
	removed, err := s.svc.Clear(ctx)
	if err != nil {
		return nil, apiError(err, "clearing memories")
	}
	out := &clearMemoriesOutput{}
	out.Body.Removed = removed
	return out, nil
}

func (s *Server) handleStats(ctx context.Context, _ *struct{}) (*statsOutput, error) {
	stats, err := s.svc.Stats(ctx)
	if err != nil {
		return nil, apiError(err, "reading stats")
	}

	out := &statsOutput{}
	out.Body.TotalMemories = stats.Count
	out.Body.DatabaseBytes = stats.SizeBytes
	out.Body.Provider = stats.Provider
	out.Body.Model = stats.Model
	out.Body.Dimensions = stats.Dimensions
	out.Body.Engine = stats.Engine
	if !stats.OldestCreatedAt.IsZero() {
		t := stats.OldestCreatedAt
		out.Body.OldestCreatedAt = &t
	}
	if !stats.NewestUpdatedAt.IsZero() {
		t := stats.NewestUpdatedAt
		out.Body.NewestUpdatedAt = &t
	}
	return out, nil
}

func (s *Server) handleExport(ctx context.Context, _ *struct{}) (*exportOutput, error) {
	snap, err := s.svc.Export(ctx)
	if err != nil {
		return nil, apiError(err, "exporting memories")
	}
	return &exportOutput{Body: *snap}, nil
}

func (s *Server) handleImport(ctx context.Context, input *importInput) (*importOutput, error) {
	result, err := s.svc.Import(ctx, &input.Body, input.Clear)
	if err != nil {
		return nil, apiError(err, "importing snapshot")
	}

	out := &importOutput{}
	out.Body.Imported = result.Imported
	out.Body.Cleared = result.Cleared
	out.Body.Errors = result.Errors
	return out, nil
}

// apiError maps a service error onto the matching HTTP status.
func apiError(err error, msg string) error {
	return huma.NewError(memerr.HTTPStatus(err), msg, err)
}
