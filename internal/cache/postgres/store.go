// Package postgres provides the Postgres-backed score store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lauravimes/leadblitz/internal/scoring"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// StoreConfig controls the Postgres connection pool used for score rows.
type StoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type queryExecCloser interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists combined scores keyed by normalized-URL hash.
type Store struct {
	pool  queryExecCloser
	table string
}

// NewStore creates a Postgres-backed Store using the provided config.
func NewStore(ctx context.Context, cfg StoreConfig) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("cache.dsn is required")
	}
	table := cfg.Table
	if table == "" {
		table = "score_cache"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool, table: table}, nil
}

// NewStoreWithPool constructs a store from an existing pool (primarily for
// testing).
func NewStoreWithPool(pool queryExecCloser, table string) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "score_cache"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Store{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Get loads the cached score for urlHash. A missing row is a miss, not an
// error.
func (s *Store) Get(ctx context.Context, urlHash string) (scoring.CachedScore, bool, error) {
	if s == nil || s.pool == nil {
		return scoring.CachedScore{}, false, fmt.Errorf("score store is not configured")
	}

	query := fmt.Sprintf(
		`SELECT url_hash, normalized_url, score, fetched_at FROM %s WHERE url_hash = $1`,
		s.table,
	)

	var (
		entry    scoring.CachedScore
		scoreRaw []byte
	)
	err := s.pool.QueryRow(ctx, query, urlHash).Scan(
		&entry.URLHash,
		&entry.NormalizedURL,
		&scoreRaw,
		&entry.FetchedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return scoring.CachedScore{}, false, nil
	}
	if err != nil {
		return scoring.CachedScore{}, false, fmt.Errorf("query score cache: %w", err)
	}
	if err := json.Unmarshal(scoreRaw, &entry.Score); err != nil {
		return scoring.CachedScore{}, false, fmt.Errorf("decode cached score: %w", err)
	}
	return entry, true, nil
}

// Put upserts the entry; a rescored URL replaces its previous row.
func (s *Store) Put(ctx context.Context, entry scoring.CachedScore) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("score store is not configured")
	}
	if entry.URLHash == "" {
		return fmt.Errorf("url hash is required")
	}

	scoreRaw, err := json.Marshal(entry.Score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}

	query := fmt.Sprintf(`
INSERT INTO %s (url_hash, normalized_url, score, fetched_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (url_hash) DO UPDATE
SET normalized_url = EXCLUDED.normalized_url,
    score = EXCLUDED.score,
    fetched_at = EXCLUDED.fetched_at`, s.table)

	if _, err := s.pool.Exec(ctx, query, entry.URLHash, entry.NormalizedURL, scoreRaw, entry.FetchedAt); err != nil {
		return fmt.Errorf("upsert score cache: %w", err)
	}
	return nil
}
