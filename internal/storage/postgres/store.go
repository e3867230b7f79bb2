// Package postgres provides Postgres-backed persistence for the snapshot
// catalog and the crawl cursor.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool and table names.
type Config struct {
	DSN             string
	CatalogTable    string
	CursorTable     string
	CursorName      string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// Store implements crawler.Catalog and crawler.CursorStore.
type Store struct {
	pool         pool
	catalogTable string
	cursorTable  string
	cursorName   string
}

// New connects to Postgres using the provided config.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewWithPool(p, cfg)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, cfg Config) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	s := &Store{
		pool:         p,
		catalogTable: valueOr(cfg.CatalogTable, "snapshots"),
		cursorTable:  valueOr(cfg.CursorTable, "crawl_cursors"),
		cursorName:   valueOr(cfg.CursorName, "default"),
	}
	for _, table := range []string{s.catalogTable, s.cursorTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	return s, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate creates the catalog and cursor tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	run_id     TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	uri        TEXT NOT NULL,
	digest     TEXT NOT NULL,
	postings   INTEGER NOT NULL,
	skills     INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
)`, s.catalogTable),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	name       TEXT PRIMARY KEY,
	marker     TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, s.cursorTable),
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate postgres: %w", err)
		}
	}
	return nil
}

// RecordSnapshot inserts a catalog row.
func (s *Store) RecordSnapshot(ctx context.Context, meta crawler.SnapshotMeta) error {
	if meta.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	file_name,
	uri,
	digest,
	postings,
	skills,
	created_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7
)`, s.catalogTable)
	args := []any{
		meta.RunID,
		meta.FileName,
		meta.URI,
		meta.Digest,
		meta.Postings,
		meta.Skills,
		meta.CreatedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns matching catalog rows, newest first.
func (s *Store) ListSnapshots(ctx context.Context, filter crawler.SnapshotFilter) ([]crawler.SnapshotMeta, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.From.IsZero() {
		args = append(args, filter.From)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !filter.To.IsZero() {
		args = append(args, filter.To)
		conds = append(conds, fmt.Sprintf("created_at <= $%d", len(args)))
	}
	if len(filter.FileNames) > 0 {
		args = append(args, filter.FileNames)
		conds = append(conds, fmt.Sprintf("file_name = ANY($%d)", len(args)))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT run_id, file_name, uri, digest, postings, skills, created_at FROM %s", s.catalogTable)
	if len(conds) > 0 {
		b.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	b.WriteString(" ORDER BY created_at DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()
	var out []crawler.SnapshotMeta
	for rows.Next() {
		var m crawler.SnapshotMeta
		if err := rows.Scan(&m.RunID, &m.FileName, &m.URI, &m.Digest, &m.Postings, &m.Skills, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Load returns the marker row for the configured cursor name.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	query := fmt.Sprintf("SELECT marker FROM %s WHERE name = $1", s.cursorTable)
	var marker string
	err := s.pool.QueryRow(ctx, query, s.cursorName).Scan(&marker)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select cursor: %w", err)
	}
	return marker, marker != "", nil
}

// Save upserts the marker row.
func (s *Store) Save(ctx context.Context, marker string) error {
	query := fmt.Sprintf(`
INSERT INTO %s (name, marker, updated_at) VALUES ($1, $2, now())
ON CONFLICT (name) DO UPDATE SET marker = EXCLUDED.marker, updated_at = EXCLUDED.updated_at`, s.cursorTable)
	if _, err := s.pool.Exec(ctx, query, s.cursorName, marker); err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}

func valueOr(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
