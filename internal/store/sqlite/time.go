// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package sqlite

import (
	"encoding/binary"
	"math"
	"time"
)

// timeLayout is RFC 3339 with a fixed-width, zero-padded fractional second.
// RFC3339Nano trims trailing zeros, which breaks lexicographic ordering at
// sub-second boundaries ("...00Z" > "...00.5Z"); the SQL MIN/MAX over
// created_at/updated_at relies on string comparison matching time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Timestamps are stored as fixed-width RFC 3339 text in UTC so rows stay
// readable and lexicographically sortable.
func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	// RFC3339Nano parses any fractional width, including the fixed one.
	return time.Parse(time.RFC3339Nano, s)
}

// decodeVector reads a little-endian float32 blob as written by
// sqlite_vec.SerializeFloat32.
func decodeVector(blob []byte) []float32 {
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}
