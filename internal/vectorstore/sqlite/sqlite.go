package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"lawrag/internal/domain"
	"lawrag/internal/vectorstore"
)

// FileName is the database file created inside the store directory.
const FileName = "lawrag.db"

// Storage keeps collections in a single SQLite file. Embeddings are stored
// as JSON arrays and ranked in process.
type Storage struct {
	conn *sql.DB
	path string
}

// Open opens or creates the database inside dir.
func Open(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	path := filepath.Join(dir, FileName)
	conn, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	s := &Storage{conn: conn, path: path}
	if err := s.setupTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to setup database tables: %w", err)
	}
	return s, nil
}

func (s *Storage) Close() error {
	return s.conn.Close()
}

func (s *Storage) Path() string {
	return s.path
}

func (s *Storage) setupTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS collections (
			name TEXT PRIMARY KEY,
			embedder TEXT NOT NULL,
			dimension INTEGER NOT NULL,
			degraded INTEGER NOT NULL DEFAULT 0,
			built_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			seq INTEGER NOT NULL,
			id TEXT NOT NULL,
			text TEXT NOT NULL,
			source TEXT NOT NULL,
			article TEXT NOT NULL DEFAULT '',
			ordinal INTEGER NOT NULL,
			embedding TEXT NOT NULL,
			PRIMARY KEY (collection, id),
			FOREIGN KEY (collection) REFERENCES collections (name) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_records_seq ON records(collection, seq)`,
	}
	for _, query := range queries {
		if _, err := s.conn.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query: %s, error: %w", query, err)
		}
	}
	return nil
}

func (s *Storage) DropCollection(ctx context.Context, name string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("failed to delete collection: %w", err)
	}
	return tx.Commit()
}

func (s *Storage) CreateCollection(ctx context.Context, info domain.CollectionInfo) error {
	builtAt := info.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO collections (name, embedder, dimension, degraded, built_at) VALUES (?, ?, ?, ?, ?)`,
		info.Name, info.Embedder, info.Dimension, info.Degraded, builtAt)
	if err != nil {
		return fmt.Errorf("failed to create collection %q: %w", info.Name, err)
	}
	return nil
}

func (s *Storage) Add(ctx context.Context, name string, records []domain.Record) error {
	info, err := s.Info(ctx, name)
	if err != nil {
		return err
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (collection, seq, id, text, source, article, ordinal, embedding) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if len(r.Embedding) != info.Dimension {
			return fmt.Errorf("%w: record %s has %d, collection %d", domain.ErrDimensionMismatch, r.ID, len(r.Embedding), info.Dimension)
		}
		embeddingJSON, err := json.Marshal(r.Embedding)
		if err != nil {
			return fmt.Errorf("failed to marshal embedding: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, name, info.Count+i, r.ID, r.Text, r.Source, r.Article, r.Ordinal, string(embeddingJSON)); err != nil {
			return fmt.Errorf("failed to insert record %s: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Storage) Query(ctx context.Context, name string, vector []float64, k int) ([]domain.Match, error) {
	records, err := s.List(ctx, name)
	if err != nil {
		return nil, err
	}
	return vectorstore.Rank(records, vector, k)
}

func (s *Storage) Info(ctx context.Context, name string) (domain.CollectionInfo, error) {
	var info domain.CollectionInfo
	row := s.conn.QueryRowContext(ctx,
		`SELECT c.name, c.embedder, c.dimension, c.degraded, c.built_at,
			(SELECT COUNT(*) FROM records r WHERE r.collection = c.name)
		FROM collections c WHERE c.name = ?`, name)
	err := row.Scan(&info.Name, &info.Embedder, &info.Dimension, &info.Degraded, &info.BuiltAt, &info.Count)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CollectionInfo{}, fmt.Errorf("%w: %s", domain.ErrCollectionNotFound, name)
	}
	if err != nil {
		return domain.CollectionInfo{}, fmt.Errorf("failed to read collection: %w", err)
	}
	return info, nil
}

func (s *Storage) List(ctx context.Context, name string) ([]domain.Record, error) {
	if _, err := s.Info(ctx, name); err != nil {
		return nil, err
	}
	rows, err := s.conn.QueryContext(ctx,
		`SELECT id, text, source, article, ordinal, embedding FROM records WHERE collection = ? ORDER BY seq`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var r domain.Record
		var embeddingJSON string
		if err := rows.Scan(&r.ID, &r.Text, &r.Source, &r.Article, &r.Ordinal, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal([]byte(embeddingJSON), &r.Embedding); err != nil {
			return nil, fmt.Errorf("failed to unmarshal embedding for record %s: %w", r.ID, err)
		}
		r.Preamble = r.Article == ""
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return records, nil
}
