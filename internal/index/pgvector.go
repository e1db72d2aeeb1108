package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/liao/plantcare/internal/chunk"
)

const DefaultTable = "plant_documents"

// pgPool pgxpool.Pool 与 pgxmock 共同满足的子集
type pgPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PGConfig 远程 pgvector（Supabase）配置
type PGConfig struct {
	DSN            string
	Table          string
	Dimensions     int
	EnsureSchema   bool
	ConnectTimeout time.Duration
}

// PGVector 远程后端：检索委托给服务端的 match_<table> 函数
type PGVector struct {
	pool      pgPool
	table     string
	tableID   string
	matchFn   string
	dimension int
}

// NewPGVector 连接并探活，失败统一返回 ErrIndexUnavailable
func NewPGVector(ctx context.Context, cfg PGConfig) (*PGVector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector dsn is empty", ErrIndexUnavailable)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.New(connCtx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: connect: %w", ErrIndexUnavailable, err)
	}
	if err := pool.Ping(connCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %w", ErrIndexUnavailable, err)
	}

	p := newPGVector(pool, cfg.Table, cfg.Dimensions)
	if cfg.EnsureSchema {
		if err := p.EnsureSchema(connCtx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	slog.Info("pgvector index connected", "table", p.table)
	return p, nil
}

func newPGVector(pool pgPool, table string, dims int) *PGVector {
	if table == "" {
		table = DefaultTable
	}
	return &PGVector{
		pool:      pool,
		table:     table,
		tableID:   pgx.Identifier{table}.Sanitize(),
		matchFn:   pgx.Identifier{"match_" + table}.Sanitize(),
		dimension: dims,
	}
}

// EnsureSchema 建表、索引和检索函数；已存在时不做改动
func (p *PGVector) EnsureSchema(ctx context.Context) error {
	idxID := pgx.Identifier{p.table + "_embedding_idx"}.Sanitize()
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
    id BIGSERIAL PRIMARY KEY,
    chunk_id TEXT UNIQUE NOT NULL,
    source_file TEXT NOT NULL,
    chunk_index INT NOT NULL,
    text TEXT NOT NULL,
    embedding vector(%d),
    created_at TIMESTAMPTZ DEFAULT NOW()
)`, p.tableID, p.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)`,
			idxID, p.tableID),
		fmt.Sprintf(`CREATE OR REPLACE FUNCTION %s(query_embedding vector(%d), match_threshold float, match_count int)
RETURNS TABLE (id bigint, chunk_id text, source_file text, text text, similarity float)
LANGUAGE sql STABLE AS $$
    SELECT d.id, d.chunk_id, d.source_file, d.text, 1 - (d.embedding <=> query_embedding) AS similarity
    FROM %s d
    WHERE 1 - (d.embedding <=> query_embedding) >= match_threshold
    ORDER BY d.embedding <=> query_embedding, d.id
    LIMIT match_count
$$`, p.matchFn, p.dimension, p.tableID),
	}
	for _, stmt := range stmts {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("%w: ensure schema: %w", ErrIndexUnavailable, err)
		}
	}
	return nil
}

func (p *PGVector) UpsertMany(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}
	return p.withTx(ctx, func(tx pgx.Tx) error {
		return p.upsertTx(ctx, tx, chunks, vectors)
	})
}

// Replace 清表和写入在同一个事务里，失败回滚后旧数据仍在
func (p *PGVector) Replace(ctx context.Context, chunks []chunk.Chunk, vectors [][]float32) error {
	if err := checkBatch(chunks, vectors); err != nil {
		return err
	}
	return p.withTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, fmt.Sprintf("DELETE FROM %s", p.tableID)); err != nil {
			return fmt.Errorf("%w: reset: %w", ErrIndexUnavailable, err)
		}
		return p.upsertTx(ctx, tx, chunks, vectors)
	})
}

func (p *PGVector) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, txErr := p.pool.Begin(ctx)
	if txErr != nil {
		return fmt.Errorf("%w: begin tx: %w", ErrIndexUnavailable, txErr)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = fmt.Errorf("pgvector: rollback failed: %w; cause: %v", rbErr, err)
			}
			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = fmt.Errorf("%w: commit: %w", ErrIndexUnavailable, commitErr)
		}
	}()
	return fn(tx)
}

func (p *PGVector) upsertTx(ctx context.Context, tx pgx.Tx, chunks []chunk.Chunk, vectors [][]float32) error {
	stmt := fmt.Sprintf(`INSERT INTO %s (chunk_id, source_file, chunk_index, text, embedding)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (chunk_id) DO UPDATE SET
    source_file = excluded.source_file,
    chunk_index = excluded.chunk_index,
    text = excluded.text,
    embedding = excluded.embedding`, p.tableID)
	for i, c := range chunks {
		if p.dimension > 0 && len(vectors[i]) != p.dimension {
			return fmt.Errorf("pgvector: chunk %q dimension mismatch (got %d want %d)", c.ID, len(vectors[i]), p.dimension)
		}
		if _, err := tx.Exec(ctx, stmt, c.ID, c.SourceName, c.Index, c.Text, pgvector.NewVector(vectors[i])); err != nil {
			return fmt.Errorf("%w: upsert %q: %w", ErrIndexUnavailable, c.ID, err)
		}
	}
	return nil
}

func (p *PGVector) Reset(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s", p.tableID)); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrIndexUnavailable, err)
	}
	return nil
}

func (p *PGVector) Search(ctx context.Context, query []float32, topK int, threshold float64) ([]Hit, error) {
	if p.dimension > 0 && len(query) != p.dimension {
		return nil, errors.New("pgvector: query dimension mismatch")
	}
	if topK <= 0 {
		return []Hit{}, nil
	}
	sql := fmt.Sprintf("SELECT chunk_id, source_file, text, similarity FROM %s($1, $2, $3)", p.matchFn)
	rows, err := p.pool.Query(ctx, sql, pgvector.NewVector(query), threshold, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %w", ErrIndexUnavailable, err)
	}
	defer rows.Close()

	hits := make([]Hit, 0, topK)
	for rows.Next() {
		var (
			c     chunk.Chunk
			score float64
		)
		if err := rows.Scan(&c.ID, &c.SourceName, &c.Text, &score); err != nil {
			return nil, fmt.Errorf("%w: scan: %w", ErrIndexUnavailable, err)
		}
		c.Index = indexFromID(c.ID)
		c.CharCount = len([]rune(c.Text))
		hits = append(hits, Hit{Chunk: c, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search rows: %w", ErrIndexUnavailable, err)
	}
	return rank(hits, topK, threshold), nil
}

func (p *PGVector) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", p.tableID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count: %w", ErrIndexUnavailable, err)
	}
	return n, nil
}

func (p *PGVector) Close() error {
	p.pool.Close()
	return nil
}

// indexFromID 从 "{source}_chunk_{i}" 取出 i
func indexFromID(id string) int {
	i := strings.LastIndex(id, "_chunk_")
	if i < 0 {
		return 0
	}
	n, err := strconv.Atoi(id[i+len("_chunk_"):])
	if err != nil {
		return 0
	}
	return n
}
