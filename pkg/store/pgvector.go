package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/xhad/hybridrag/internal/models"
	"github.com/xhad/hybridrag/internal/types"
)

type PGVectorStoreConfig struct {
	ConnString string
	// HNSW build parameters.
	M              int
	EfConstruction int
}

// PGVectorStore keeps one table per collection in a Postgres database with
// the pgvector extension.
type PGVectorStore struct {
	config PGVectorStoreConfig
	pool   *pgxpool.Pool
}

func NewPGVectorStore(ctx context.Context, config PGVectorStoreConfig) (*PGVectorStore, error) {
	if config.M == 0 {
		config.M = 16
	}
	if config.EfConstruction == 0 {
		config.EfConstruction = 64
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	// Enable pgvector extension
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}
	return nil
}

// Create makes the collection table if it does not exist yet. An existing
// table with another dimension is an error.
func (vs *PGVectorStore) Create(ctx context.Context, name string, dim int) (types.Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if dim <= 0 {
		return nil, fmt.Errorf("invalid dimension %d", dim)
	}

	existing, err := vs.dimension(ctx, name)
	switch {
	case err == nil:
		if existing != dim {
			return nil, fmt.Errorf("%w: collection %s has %d, requested %d", ErrDimensionMismatch, name, existing, dim)
		}
		return vs.collection(name, dim), nil
	case !errors.Is(err, ErrCollectionNotFound):
		return nil, err
	}

	table := pgx.Identifier{name}.Sanitize()
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d),
			raw TEXT NOT NULL
		)`, table, dim)

	if _, err := vs.pool.Exec(ctx, createTable); err != nil {
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create vector index
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS %s
		ON %s
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = %d, ef_construction = %d)`,
		pgx.Identifier{name + "_embedding_idx"}.Sanitize(), table,
		vs.config.M, vs.config.EfConstruction)

	if _, err := vs.pool.Exec(ctx, createIndex); err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return vs.collection(name, dim), nil
}

func (vs *PGVectorStore) Get(ctx context.Context, name string) (types.Collection, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	dim, err := vs.dimension(ctx, name)
	if err != nil {
		return nil, err
	}
	return vs.collection(name, dim), nil
}

// dimension reads the declared size of the embedding column; pgvector
// stores it as the column's type modifier.
func (vs *PGVectorStore) dimension(ctx context.Context, name string) (int, error) {
	var dim int
	err := vs.pool.QueryRow(ctx, `
		SELECT atttypmod
		FROM pg_attribute
		WHERE attrelid = to_regclass($1) AND attname = 'embedding'`,
		pgx.Identifier{name}.Sanitize(),
	).Scan(&dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to look up collection %s: %w", name, err)
	}
	return dim, nil
}

func (vs *PGVectorStore) collection(name string, dim int) *pgCollection {
	return &pgCollection{
		pool:  vs.pool,
		name:  name,
		table: pgx.Identifier{name}.Sanitize(),
		dim:   dim,
	}
}

func (vs *PGVectorStore) Close() {
	if vs.pool != nil {
		vs.pool.Close()
	}
}

type pgCollection struct {
	pool  *pgxpool.Pool
	name  string
	table string
	dim   int
}

func (c *pgCollection) Name() string { return c.name }

func (c *pgCollection) Upsert(ctx context.Context, records []models.IndexedRecord) error {
	if len(records) == 0 {
		return nil
	}
	for _, r := range records {
		if len(r.Vector) != c.dim {
			return fmt.Errorf("%w: record %s has %d, collection %d", ErrDimensionMismatch, r.ID, len(r.Vector), c.dim)
		}
	}

	// Begin transaction
	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stmt := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, raw)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			raw = EXCLUDED.raw`,
		c.table)

	for _, r := range records {
		if _, err := tx.Exec(ctx, stmt, r.ID, pgvector.NewVector(r.Vector), sanitizeText(r.Raw)); err != nil {
			return fmt.Errorf("failed to upsert record %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (c *pgCollection) Query(ctx context.Context, vector []float32, k int) ([]models.Candidate, error) {
	if len(vector) != c.dim {
		return nil, fmt.Errorf("%w: query has %d, collection %d", ErrDimensionMismatch, len(vector), c.dim)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	query := fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1) AS score, raw
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2`,
		c.table)

	rows, err := c.pool.Query(ctx, query, pgvector.NewVector(vector), k)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", c.name, err)
	}
	defer rows.Close()

	var candidates []models.Candidate
	for rows.Next() {
		var cand models.Candidate
		if err := rows.Scan(&cand.ID, &cand.Score, &cand.Raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		candidates = append(candidates, cand)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}

	return candidates, nil
}

// sanitizeText drops invalid UTF-8 and NUL bytes, neither of which Postgres
// accepts in a TEXT column.
func sanitizeText(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if utf8.ValidString(s) {
		return s
	}
	return strings.ToValidUTF8(s, "")
}
