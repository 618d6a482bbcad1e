// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Dead Simple Memory Contributors

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Manuel-Materazzo/dead-simple-memory-mcp/internal/store"
	memerr "github.com/Manuel-Materazzo/dead-simple-memory-mcp/pkg/errors"
)

func init() {
	sqlite_vec.Auto()
}

// Compile-time interface check.
var _ store.MemoryStore = (*MemoryStore)(nil)

// MemoryStore implements store.MemoryStore backed by SQLite with sqlite-vec.
// The memories table holds the rows; the vec_memories vec0 virtual table
// mirrors the embeddings keyed by rowid for KNN queries.
type MemoryStore struct {
	db         *sql.DB
	path       string
	dimensions int
}

// NewMemoryStore opens (or creates) a SQLite database at dbPath and
// initialises the memories table and the vec0 companion table. The embedding
// dimension is fixed for the lifetime of the database.
func NewMemoryStore(dbPath string, dimensions int) (*MemoryStore, error) {
	if dimensions <= 0 {
		return nil, memerr.Errorf(memerr.CodeEmbeddingDimensionMismatch, "embedding dimensions must be positive, got %d", dimensions)
	}

	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "creating database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "opening sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "pinging sqlite db: %w", err)
	}

	if err := migrate(db, dimensions); err != nil {
		_ = db.Close()
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "migrating memory tables: %w", err)
	}

	return &MemoryStore{db: db, path: dbPath, dimensions: dimensions}, nil
}

func migrate(db *sql.DB, dimensions int) error {
	// AUTOINCREMENT keeps deleted IDs from ever being reassigned.
	const ddl = `
CREATE TABLE IF NOT EXISTS memories (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	content    TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);
`
	if _, err := db.Exec(ddl); err != nil {
		return fmt.Errorf("creating memories table: %w", err)
	}

	vecDDL := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS vec_memories USING vec0(embedding float[%d])`,
		dimensions,
	)
	if _, err := db.Exec(vecDDL); err != nil {
		return fmt.Errorf("creating vec_memories virtual table: %w", err)
	}

	return nil
}

// Dimensions returns the fixed embedding dimension of this store.
func (s *MemoryStore) Dimensions() int { return s.dimensions }

// Close closes the underlying database connection.
func (s *MemoryStore) Close() error { return s.db.Close() }

func (s *MemoryStore) checkDimension(vec []float32) error {
	if len(vec) != s.dimensions {
		return memerr.Errorf(memerr.CodeEmbeddingDimensionMismatch,
			"embedding dimension %d does not match store dimension %d", len(vec), s.dimensions)
	}
	return nil
}

// Create inserts mem and its vector in one transaction, filling ID and both
// timestamps (equal at creation).
func (s *MemoryStore) Create(ctx context.Context, mem *store.Memory) error {
	if err := s.checkDimension(mem.Embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(mem.Embedding)
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "serializing embedding: %w", err)
	}

	metaJSON, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const insert = `INSERT INTO memories (content, embedding, metadata, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`
	result, err := tx.ExecContext(ctx, insert, mem.Content, blob, metaJSON, formatTime(now), formatTime(now))
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "inserting memory: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "reading inserted memory id: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO vec_memories (rowid, embedding) VALUES (?, ?)`, id, blob); err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "inserting memory vector %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "committing memory insert: %w", err)
	}

	mem.ID = id
	mem.CreatedAt = now
	mem.UpdatedAt = now
	return nil
}

// Get returns the memory with the given ID, embedding included.
func (s *MemoryStore) Get(ctx context.Context, id int64) (*store.Memory, error) {
	const q = `SELECT id, content, embedding, metadata, created_at, updated_at FROM memories WHERE id = ?`
	mem, err := scanMemory(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memerr.Errorf(memerr.CodeStoreRowNotFound, "memory %d not found", id)
	}
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "getting memory %d: %w", id, err)
	}
	return mem, nil
}

// GetMany returns the memories for ids, preserving the input order and
// skipping IDs that no longer exist.
func (s *MemoryStore) GetMany(ctx context.Context, ids []int64) ([]*store.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	q := `SELECT id, content, embedding, metadata, created_at, updated_at FROM memories WHERE id IN (` + placeholders + `)`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "getting memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	byID := make(map[int64]*store.Memory, len(ids))
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "scanning memory row: %w", err)
		}
		byID[mem.ID] = mem
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "iterating memory rows: %w", err)
	}

	out := make([]*store.Memory, 0, len(ids))
	for _, id := range ids {
		if mem, ok := byID[id]; ok {
			out = append(out, mem)
		}
	}
	return out, nil
}

// Update rewrites content, embedding, and metadata for mem.ID in one
// transaction and refreshes mem.UpdatedAt. The vec0 row is replaced rather
// than updated; vec0 has no ON CONFLICT support.
func (s *MemoryStore) Update(ctx context.Context, mem *store.Memory) error {
	if err := s.checkDimension(mem.Embedding); err != nil {
		return err
	}

	blob, err := sqlite_vec.SerializeFloat32(mem.Embedding)
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "serializing embedding: %w", err)
	}

	metaJSON, err := marshalMetadata(mem.Metadata)
	if err != nil {
		return err
	}

	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	const q = `UPDATE memories SET content = ?, embedding = ?, metadata = ?, updated_at = ? WHERE id = ?`
	result, err := tx.ExecContext(ctx, q, mem.Content, blob, metaJSON, formatTime(now), mem.ID)
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "updating memory %d: %w", mem.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "checking rows for memory %d: %w", mem.ID, err)
	}
	if affected == 0 {
		return memerr.Errorf(memerr.CodeStoreRowNotFound, "memory %d not found", mem.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_memories WHERE rowid = ?`, mem.ID); err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "deleting memory vector %d: %w", mem.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO vec_memories (rowid, embedding) VALUES (?, ?)`, mem.ID, blob); err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "inserting memory vector %d: %w", mem.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return memerr.Errorf(memerr.CodeStoreDatabaseFailure, "committing memory update: %w", err)
	}

	mem.UpdatedAt = now
	return nil
}

// Delete removes a memory and its vector atomically. A missing ID returns
// (false, nil).
func (s *MemoryStore) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id)
	if err != nil {
		return false, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "deleting memory %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "checking rows for memory %d: %w", id, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_memories WHERE rowid = ?`, id); err != nil {
		return false, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "deleting memory vector %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return false, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "committing memory delete: %w", err)
	}

	return affected > 0, nil
}

// List returns one page ordered by ID descending. Pages past the end return
// empty items with the totals intact.
func (s *MemoryStore) List(ctx context.Context, page, limit int) (*store.Page, error) {
	if page < 1 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "page must be >= 1, got %d", page)
	}
	if limit < 1 {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "limit must be >= 1, got %d", limit)
	}

	total, err := s.Count(ctx)
	if err != nil {
		return nil, err
	}

	offset := (page - 1) * limit
	const q = `SELECT id, content, embedding, metadata, created_at, updated_at
FROM memories ORDER BY id DESC LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "listing memories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	items := make([]*store.Memory, 0, limit)
	for rows.Next() {
		mem, err := scanMemory(rows)
		if err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "scanning memory row: %w", err)
		}
		items = append(items, mem)
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "iterating memory rows: %w", err)
	}

	totalPages := (total + limit - 1) / limit
	if totalPages < 1 {
		totalPages = 1
	}

	return &store.Page{
		Items:      items,
		Total:      total,
		Page:       page,
		TotalPages: totalPages,
	}, nil
}

// Clear removes all memories and vectors atomically, returning the number of
// rows removed.
func (s *MemoryStore) Clear(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var total int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&total); err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "counting memories: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM memories`); err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "clearing memories: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM vec_memories`); err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "clearing memory vectors: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "committing clear: %w", err)
	}

	return total, nil
}

// Count returns the number of stored memories.
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM memories`).Scan(&total); err != nil {
		return 0, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "counting memories: %w", err)
	}
	return total, nil
}

// AllEmbeddings returns every stored vector ordered by ID ascending. This is
// the scan source for the brute-force similarity engine.
func (s *MemoryStore) AllEmbeddings(ctx context.Context) ([]store.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, embedding FROM memories ORDER BY id ASC`)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "loading embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []store.Embedding
	for rows.Next() {
		var e store.Embedding
		var blob []byte
		if err := rows.Scan(&e.ID, &blob); err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "scanning embedding row: %w", err)
		}
		e.Vector = decodeVector(blob)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "iterating embedding rows: %w", err)
	}
	return out, nil
}

// Stats reports row count, database file size, and the edge timestamps.
func (s *MemoryStore) Stats(ctx context.Context) (*store.Stats, error) {
	st := &store.Stats{}

	var oldest, newest sql.NullString
	const q = `SELECT COUNT(*), MIN(created_at), MAX(updated_at) FROM memories`
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Count, &oldest, &newest); err != nil {
		return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "reading store stats: %w", err)
	}

	if oldest.Valid {
		t, err := parseTime(oldest.String)
		if err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "parsing oldest created_at: %w", err)
		}
		st.OldestCreatedAt = t
	}
	if newest.Valid {
		t, err := parseTime(newest.String)
		if err != nil {
			return nil, memerr.Errorf(memerr.CodeStoreDatabaseFailure, "parsing newest updated_at: %w", err)
		}
		st.NewestUpdatedAt = t
	}

	if info, err := os.Stat(s.path); err == nil {
		st.SizeBytes = info.Size()
	}

	return st, nil
}

// scanner abstracts *sql.Row and *sql.Rows for memory scans.
type scanner interface {
	Scan(dest ...any) error
}

func scanMemory(row scanner) (*store.Memory, error) {
	var (
		mem       store.Memory
		blob      []byte
		metaStr   sql.NullString
		createdAt string
		updatedAt string
	)

	if err := row.Scan(&mem.ID, &mem.Content, &blob, &metaStr, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	mem.Embedding = decodeVector(blob)

	if metaStr.Valid && metaStr.String != "" {
		if err := json.Unmarshal([]byte(metaStr.String), &mem.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling memory %d metadata: %w", mem.ID, err)
		}
	}

	var err error
	mem.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parsing memory %d created_at: %w", mem.ID, err)
	}
	mem.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing memory %d updated_at: %w", mem.ID, err)
	}

	return &mem, nil
}

// marshalMetadata serialises metadata to JSON, or NULL when absent. The
// document is opaque: stored and returned verbatim, never interpreted.
func marshalMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, memerr.Errorf(memerr.CodeMemoryValidateInvalidInput, "marshalling metadata: %w", err)
	}
	return string(b), nil
}
