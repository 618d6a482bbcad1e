// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package tool

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/memory"
	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// memoryView is the wire shape of a memory in tool results.
type memoryView struct {
	ID        int64          `json:"id"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func viewOf(mem *store.Memory) memoryView {
	return memoryView{
		ID:        mem.ID,
		Content:   mem.Content,
		Metadata:  mem.Metadata,
		CreatedAt: mem.CreatedAt,
		UpdatedAt: mem.UpdatedAt,
	}
}

// RegisterMemoryTools wires the five memory tools onto the registry.
func RegisterMemoryTools(r *Registry, svc *memory.Service) {
	r.Register(searchMemoryDef(), searchMemory(svc))
	r.Register(writeMemoryDef(), writeMemory(svc))
	r.Register(updateMemoryDef(), updateMemory(svc))
	r.Register(deleteMemoryDef(), deleteMemory(svc))
	r.Register(listMemoriesDef(), listMemories(svc))
}

func searchMemoryDef() Definition {
	return Definition{
		Name:        "search_memory",
		Description: "Search stored memories by meaning. Returns the most similar memories with their similarity scores. Use before answering questions about the user or past work.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Natural language description of what to look for.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of results. Defaults to 5.",
				},
				"threshold": map[string]any{
					"type":        "number",
					"description": "Minimum similarity in [-1, 1]. Defaults to the configured threshold.",
				},
			},
			"required": []string{"query"},
		},
	}
}

func searchMemory(svc *memory.Service) HandlerFunc {
	type args struct {
		Query     string   `json:"query"`
		Limit     int      `json:"limit"`
		Threshold *float64 `json:"threshold"`
	}
	type result struct {
		ID         int64          `json:"id"`
		Content    string         `json:"content"`
		Metadata   map[string]any `json:"metadata,omitempty"`
		Similarity float64        `json:"similarity"`
		CreatedAt  time.Time      `json:"created_at"`
		UpdatedAt  time.Time      `json:"updated_at"`
	}

	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a args
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		if a.Limit == 0 {
			a.Limit = 5
		}

		found, err := svc.Search(ctx, a.Query, a.Limit, a.Threshold)
		if err != nil {
			return nil, err
		}

		results := make([]result, 0, len(found))
		for _, f := range found {
			results = append(results, result{
				ID:         f.Memory.ID,
				Content:    f.Memory.Content,
				Metadata:   f.Memory.Metadata,
				Similarity: f.Similarity,
				CreatedAt:  f.Memory.CreatedAt,
				UpdatedAt:  f.Memory.UpdatedAt,
			})
		}

		return map[string]any{"results": results, "count": len(results)}, nil
	}
}

func writeMemoryDef() Definition {
	return Definition{
		Name:        "write_memory",
		Description: "Store a new memory. If very similar content already exists the write is not stored; instead the colliding memories are returned so you can update one of them or drop the write.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The fact to remember, written as a standalone statement.",
				},
				"metadata": map[string]any{
					"type":        "object",
					"description": "Optional opaque metadata stored alongside the memory.",
				},
				"force": map[string]any{
					"type":        "boolean",
					"description": "Store even when very similar content already exists.",
				},
			},
			"required": []string{"content"},
		},
	}
}

func writeMemory(svc *memory.Service) HandlerFunc {
	type args struct {
		Content  string         `json:"content"`
		Metadata map[string]any `json:"metadata"`
		Force    bool           `json:"force"`
	}

	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a args
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		mem, err := svc.Create(ctx, a.Content, a.Metadata, a.Force)
		if err != nil {
			// A duplicate collision is a result the model must act on, not
			// a failure: surface the colliding memories.
			if dup, ok := memory.AsDuplicate(err); ok {
				return map[string]any{
					"status":           "conflict_detected",
					"message":          "similar memory already stored; update one of these or drop the write",
					"similar_memories": dup.Similar,
				}, nil
			}
			return nil, err
		}

		return map[string]any{"status": "success", "memory": viewOf(mem)}, nil
	}
}

func updateMemoryDef() Definition {
	return Definition{
		Name:        "update_memory",
		Description: "Update an existing memory by id. Content and metadata are each optional; omitted fields keep their stored value.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"memory_id": map[string]any{
					"type":        "integer",
					"description": "ID of the memory to update.",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Replacement content.",
				},
				"metadata": map[string]any{
					"type":        "object",
					"description": "Replacement metadata document.",
				},
			},
			"required": []string{"memory_id"},
		},
	}
}

func updateMemory(svc *memory.Service) HandlerFunc {
	type args struct {
		MemoryID int64          `json:"memory_id"`
		Content  *string        `json:"content"`
		Metadata map[string]any `json:"metadata"`
	}

	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a args
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		mem, err := svc.Update(ctx, memory.UpdateRequest{
			ID:       a.MemoryID,
			Content:  a.Content,
			Metadata: a.Metadata,
		})
		if err != nil {
			return nil, err
		}

		return map[string]any{"status": "success", "memory": viewOf(mem)}, nil
	}
}

func deleteMemoryDef() Definition {
	return Definition{
		Name:        "delete_memory",
		Description: "Delete a memory by id. Deleting an id that does not exist is reported, not an error.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"memory_id": map[string]any{
					"type":        "integer",
					"description": "ID of the memory to delete.",
				},
			},
			"required": []string{"memory_id"},
		},
	}
}

func deleteMemory(svc *memory.Service) HandlerFunc {
	type args struct {
		MemoryID int64 `json:"memory_id"`
	}

	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a args
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}

		deleted, err := svc.Delete(ctx, a.MemoryID)
		if err != nil {
			return nil, err
		}

		return map[string]any{"status": "success", "deleted": deleted}, nil
	}
}

func listMemoriesDef() Definition {
	return Definition{
		Name:        "list_memories",
		Description: "List stored memories, newest first, with pagination.",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"page": map[string]any{
					"type":        "integer",
					"description": "Page number starting at 1.",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Memories per page. Defaults to 50.",
				},
			},
		},
	}
}

func listMemories(svc *memory.Service) HandlerFunc {
	type args struct {
		Page  int `json:"page"`
		Limit int `json:"limit"`
	}

	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var a args
		if err := decodeArgs(raw, &a); err != nil {
			return nil, err
		}
		if a.Page == 0 {
			a.Page = 1
		}
		if a.Limit == 0 {
			a.Limit = 50
		}
		if a.Page < 1 || a.Limit < 1 {
			return nil, memerr.Errorf(memerr.CodeToolArgumentsInvalid, "page and limit must be >= 1")
		}

		page, err := svc.List(ctx, a.Page, a.Limit)
		if err != nil {
			return nil, err
		}

		memories := make([]memoryView, 0, len(page.Items))
		for _, mem := range page.Items {
			memories = append(memories, viewOf(mem))
		}

		return map[string]any{
			"memories":    memories,
			"total":       page.Total,
			"page":        page.Page,
			"total_pages": page.TotalPages,
		}, nil
	}
}
