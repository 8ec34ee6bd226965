// Package sqlite provides a vector store backed by SQLite (pure Go driver).
// Embeddings are stored as little-endian float32 blobs and ranked in process.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/haasonsaas/ragsweep/internal/rag/embeddings"
	"github.com/haasonsaas/ragsweep/pkg/models"
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Config configures the SQLite store.
type Config struct {
	// Path is the database file. Empty or ":memory:" keeps everything in memory.
	Path string

	// Collection scopes rows so several indexes can share one file.
	Collection string

	// Dimension is the expected embedding length; zero disables the check.
	Dimension int
}

// Store implements a collection-scoped chunk store in SQLite.
type Store struct {
	db         *sql.DB
	collection string
	dimension  int
}

// New opens the database and creates the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Collection) == "" {
		return nil, fmt.Errorf("sqlite store: collection is required")
	}
	path := cfg.Path
	if path == "" {
		path = ":memory:"
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, collection: cfg.Collection, dimension: cfg.Dimension}
	if err := s.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS rag_chunks (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			document_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			content TEXT NOT NULL,
			section TEXT,
			start_offset INTEGER NOT NULL DEFAULT 0,
			end_offset INTEGER NOT NULL DEFAULT 0,
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding BLOB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rag_chunks_document ON rag_chunks(collection, document_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Upsert stores chunks in one transaction.
func (s *Store) Upsert(ctx context.Context, chunks []*models.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	for i, chunk := range chunks {
		if err := s.validateEmbedding(chunk.Embedding); err != nil {
			return fmt.Errorf("chunk %d: %w", i, err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO rag_chunks (collection, id, document_id, chunk_index, content, section, start_offset, end_offset, token_count, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			document_id = excluded.document_id,
			chunk_index = excluded.chunk_index,
			content = excluded.content,
			section = excluded.section,
			start_offset = excluded.start_offset,
			end_offset = excluded.end_offset,
			token_count = excluded.token_count,
			embedding = excluded.embedding
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, s.collection, c.ID, c.DocumentID, c.Index, c.Content,
			nullString(c.Section), c.StartOffset, c.EndOffset, c.TokenCount, encodeEmbedding(c.Embedding)); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Search ranks every chunk of the collection by cosine similarity.
func (s *Store) Search(ctx context.Context, embedding []float32, k int) ([]*models.SearchResult, error) {
	if err := s.validateEmbedding(embedding); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, chunk_index, content, section, start_offset, end_offset, token_count, embedding
		FROM rag_chunks
		WHERE collection = ?
	`, s.collection)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var results []*models.SearchResult
	for rows.Next() {
		var chunk models.DocumentChunk
		var section sql.NullString
		var blob []byte
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content, &section,
			&chunk.StartOffset, &chunk.EndOffset, &chunk.TokenCount, &blob); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunk.Section = section.String
		chunk.Embedding = decodeEmbedding(blob)
		results = append(results, &models.SearchResult{
			Chunk: &chunk,
			Score: embeddings.Cosine(embedding, chunk.Embedding),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return models.RankResults(results, k), nil
}

// Count returns the number of chunks in the collection.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rag_chunks WHERE collection = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return n, nil
}

// Close deletes the collection's rows and closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	_, delErr := s.db.Exec(`DELETE FROM rag_chunks WHERE collection = ?`, s.collection)
	closeErr := s.db.Close()
	s.db = nil
	if delErr != nil {
		return fmt.Errorf("drop collection: %w", delErr)
	}
	return closeErr
}

func (s *Store) validateEmbedding(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding is empty")
	}
	if s.dimension > 0 && len(embedding) != s.dimension {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.dimension)
	}
	return nil
}

func nullString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func encodeEmbedding(embedding []float32) []byte {
	data := make([]byte, len(embedding)*4)
	for i, f := range embedding {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(f))
	}
	return data
}

func decodeEmbedding(data []byte) []float32 {
	if len(data)%4 != 0 {
		return nil
	}
	embedding := make([]float32, len(data)/4)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return embedding
}
