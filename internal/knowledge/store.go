// Package knowledge provides the vector-backed knowledge base and the
// retriever that serves context snippets for reply generation.
//
// Snippets live in PostgreSQL with a pgvector column; similarity search
// ranks by cosine distance. When the backend is unreachable the retriever
// serves a fixed fallback set instead of failing the request.
package knowledge

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// VectorDimensions is the dimensionality of stored embedding vectors,
// matching the text-embedding-ada-002 output size.
const VectorDimensions = 1536

// Snippet is a unit of retrievable knowledge with its similarity score.
// Score is zero for listings and fallback results.
type Snippet struct {
	ID       int64   `json:"id"`
	Text     string  `json:"text"`
	Category string  `json:"category"`
	Score    float64 `json:"score,omitempty"`
}

// Opts holds configuration options for the knowledge store.
type Opts struct {
	DSN string
}

// Option defines a configuration option for the knowledge store.
type Option func(*Opts)

// WithDSN sets the PostgreSQL connection string for the knowledge store.
func WithDSN(dsn string) Option {
	return func(o *Opts) {
		o.DSN = dsn
	}
}

// Store persists knowledge snippets in PostgreSQL with pgvector.
type Store struct {
	db *sql.DB
}

// NewStore opens a connection to the knowledge database.
func NewStore(opts ...Option) (*Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Error("knowledge Store DSN not set")
		return nil, fmt.Errorf("knowledge database DSN not set")
	}
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		slog.Error("Failed to open knowledge database connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("Knowledge database ping failed", "error", err)
		return nil, err
	}
	return &Store{db: db}, nil
}

// Setup ensures the vector extension and snippet table exist.
func (s *Store) Setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		slog.Error("knowledge Store Setup extension failed", "error", err)
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS knowledge_snippets (
		id BIGINT PRIMARY KEY,
		text TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		embedding vector(%d) NOT NULL
	)`, VectorDimensions)
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		slog.Error("knowledge Store Setup table failed", "error", err)
		return fmt.Errorf("failed to create snippet table: %w", err)
	}
	slog.Debug("knowledge Store Setup succeeded")
	return nil
}

// Upsert inserts a snippet or replaces the existing one under the same ID.
func (s *Store) Upsert(ctx context.Context, snip Snippet, embedding []float32) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge_snippets (id, text, category, embedding) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, category = EXCLUDED.category, embedding = EXCLUDED.embedding`,
		snip.ID, snip.Text, snip.Category, pgvector.NewVector(embedding))
	if err != nil {
		slog.Error("knowledge Store Upsert failed", "error", err, "id", snip.ID)
		return fmt.Errorf("failed to upsert snippet %d: %w", snip.ID, err)
	}
	slog.Debug("knowledge Store Upsert succeeded", "id", snip.ID, "category", snip.Category)
	return nil
}

// Search returns up to limit snippets ranked by cosine similarity to the
// query vector, highest first.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, category, 1 - (embedding <=> $1) AS score
		 FROM knowledge_snippets ORDER BY embedding <=> $1 LIMIT $2`,
		pgvector.NewVector(vector), limit)
	if err != nil {
		slog.Error("knowledge Store Search query failed", "error", err)
		return nil, fmt.Errorf("failed to search snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		if err := rows.Scan(&sn.ID, &sn.Text, &sn.Category, &sn.Score); err != nil {
			return nil, fmt.Errorf("failed to scan snippet row: %w", err)
		}
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snippet rows: %w", err)
	}
	slog.Debug("knowledge Store Search succeeded", "count", len(snippets))
	return snippets, nil
}

// List returns all snippets ordered by ID.
func (s *Store) List(ctx context.Context) ([]Snippet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, text, category FROM knowledge_snippets ORDER BY id`)
	if err != nil {
		slog.Error("knowledge Store List query failed", "error", err)
		return nil, fmt.Errorf("failed to list snippets: %w", err)
	}
	defer rows.Close()

	var snippets []Snippet
	for rows.Next() {
		var sn Snippet
		if err := rows.Scan(&sn.ID, &sn.Text, &sn.Category); err != nil {
			return nil, fmt.Errorf("failed to scan snippet row: %w", err)
		}
		snippets = append(snippets, sn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate snippet rows: %w", err)
	}
	return snippets, nil
}

// Delete removes a snippet by ID.
func (s *Store) Delete(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_snippets WHERE id = $1`, id)
	if err != nil {
		slog.Error("knowledge Store Delete failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete snippet %d: %w", id, err)
	}
	return nil
}

// NextID returns the next free snippet ID.
func (s *Store) NextID(ctx context.Context) (int64, error) {
	var maxID sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(id) FROM knowledge_snippets`).Scan(&maxID); err != nil {
		return 0, fmt.Errorf("failed to query max snippet id: %w", err)
	}
	return maxID.Int64 + 1, nil
}

// Count returns the number of indexed snippets.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_snippets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count snippets: %w", err)
	}
	return n, nil
}

// Seed embeds and upserts the given snippets. Used to populate a fresh
// knowledge base with the default service descriptions.
func (s *Store) Seed(ctx context.Context, embedder Embedder, snippets []Snippet) error {
	for _, sn := range snippets {
		vec, err := embedder.EmbedText(ctx, sn.Text)
		if err != nil {
			return fmt.Errorf("failed to embed snippet %d: %w", sn.ID, err)
		}
		if err := s.Upsert(ctx, sn, vec); err != nil {
			return err
		}
		slog.Info("knowledge Store seeded snippet", "id", sn.ID, "category", sn.Category)
	}
	return nil
}

// Close closes the knowledge database connection.
func (s *Store) Close() error {
	slog.Debug("Closing knowledge database connection")
	return s.db.Close()
}
