// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

// Package tool exposes the memory operations as agent tool calls: named
// operations with JSON schemas and JSON arguments, dispatchable by name.
package tool

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"
	"sync"

	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

// Definition describes a tool to the model: its name, what it is for, and
// the JSON schema of its arguments.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema"`
}

// HandlerFunc executes one tool call. Arguments arrive as raw JSON; the
// returned value is serialised back to the caller.
type HandlerFunc func(ctx context.Context, args json.RawMessage) (any, error)

type entry struct {
	definition Definition
	handler    HandlerFunc
}

// Registry is a thread-safe tool table.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*entry
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*entry)}
}

// Register adds or replaces a tool.
func (r *Registry) Register(def Definition, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[def.Name] = &entry{definition: def, handler: handler}
}

// Definitions returns every registered tool, sorted by name.
func (r *Registry) Definitions() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.tools))
	for _, e := range r.tools {
		defs = append(defs, e.definition)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Dispatch runs the named tool with the given arguments.
func (r *Registry) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	e, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, memerr.Errorf(memerr.CodeToolNotFound, "unknown tool %q", name)
	}
	return e.handler(ctx, args)
}

// decodeArgs unmarshals tool arguments strictly, rejecting unknown fields so
// a model misspelling an argument fails loudly instead of silently.
func decodeArgs(args json.RawMessage, into any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(into); err != nil {
		return memerr.Wrapf(err, memerr.CodeToolArgumentsInvalid, "decoding tool arguments")
	}
	return nil
}
