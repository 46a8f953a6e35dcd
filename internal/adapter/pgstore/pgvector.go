// Package pgstore keeps model vectors in PostgreSQL using the pgvector
// extension. Each index is one table.
package pgstore

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"autorouter/internal/port"
)

// DBTX abstracts pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connect opens a pool with pgvector types registered on every connection.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing database URL: %w", err)
	}

	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}

// Store is a port.VectorStore over one pgvector table.
type Store struct {
	db        DBTX
	table     string
	dimension int
}

var unsafeIdent = regexp.MustCompile(`[^a-z0-9_]+`)

// TableName maps an index name such as "autorouter-models" to a table name.
func TableName(index string) string {
	name := unsafeIdent.ReplaceAllString(strings.ToLower(index), "_")
	name = strings.Trim(name, "_")
	if name == "" {
		name = "models"
	}
	return name
}

// New returns a store for the index. Call Migrate before first use.
func New(db DBTX, index string, dimension int) *Store {
	return &Store{
		db:        db,
		table:     pgx.Identifier{TableName(index)}.Sanitize(),
		dimension: dimension,
	}
}

// Migrate creates the extension and table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}
	_, err := s.db.Exec(ctx, fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id         text PRIMARY KEY,
			embedding  vector(%d) NOT NULL,
			metadata   jsonb NOT NULL DEFAULT '{}'::jsonb,
			updated_at timestamptz NOT NULL DEFAULT now()
		)`, s.table, s.dimension))
	if err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts or overwrites vectors by id.
func (s *Store) Upsert(ctx context.Context, items []port.VectorItem) error {
	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata,
			updated_at = now()`, s.table)

	for _, item := range items {
		if len(item.Vector) != s.dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", s.dimension, len(item.Vector))
		}
		meta, err := json.Marshal(item.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata %s: %w", item.ID, err)
		}
		if _, err := s.db.Exec(ctx, stmt, item.ID, pgvector.NewVector(item.Vector), meta); err != nil {
			return fmt.Errorf("upsert %s: %w", item.ID, err)
		}
	}
	return nil
}

// Query returns the TopK nearest rows by cosine distance. Score is
// 1 - distance so higher is better.
func (s *Store) Query(ctx context.Context, req port.QueryRequest) ([]port.VectorResult, error) {
	sql, args := buildQuery(s.table, req)

	rows, err := s.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.table, err)
	}
	defer rows.Close()

	var results []port.VectorResult
	for rows.Next() {
		var (
			r        port.VectorResult
			distance float64
			meta     []byte
		)
		if err := rows.Scan(&r.ID, &distance, &meta); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		r.Score = 1.0 - distance
		if req.IncludeMetadata && len(meta) > 0 {
			if err := json.Unmarshal(meta, &r.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// buildQuery renders the nearest-neighbor SELECT. Filter fields and values
// are always bound as parameters.
func buildQuery(table string, req port.QueryRequest) (string, []any) {
	args := []any{pgvector.NewVector(req.Vector)}

	fields := make([]string, 0, len(req.Filter))
	for field := range req.Filter {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	var where []string
	for _, field := range fields {
		value, ok := req.Filter[field]["$eq"]
		if !ok {
			continue
		}
		args = append(args, field, fmt.Sprint(value))
		where = append(where, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT id, embedding <=> $1 AS distance, metadata FROM %s", table)
	if len(where) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}
	args = append(args, req.TopK)
	fmt.Fprintf(&b, " ORDER BY distance LIMIT $%d", len(args))

	return b.String(), args
}
