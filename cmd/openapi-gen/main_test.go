// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSpec(t *testing.T) {
	spec, err := generateSpec()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(spec, &doc))

	paths, ok := doc["paths"].(map[string]any)
	require.True(t, ok, "spec missing paths")

	for _, path := range []string{
		"/health",
		"/api/v1/memories",
		"/api/v1/memories/search",
		"/api/v1/memories/{id}",
		"/api/v1/stats",
		"/api/v1/export",
		"/api/v1/import",
	} {
		assert.Contains(t, paths, path)
	}
}
