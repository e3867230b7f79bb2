// Package sqlite keeps the snapshot catalog and the crawl cursor in a local
// SQLite database (pure Go driver, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/JakeFAU/job-skills-crawler/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	run_id     TEXT PRIMARY KEY,
	file_name  TEXT NOT NULL,
	uri        TEXT NOT NULL,
	digest     TEXT NOT NULL,
	postings   INTEGER NOT NULL,
	skills     INTEGER NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS snapshots_created_at ON snapshots (created_at);
CREATE TABLE IF NOT EXISTS crawl_cursors (
	name       TEXT PRIMARY KEY,
	marker     TEXT NOT NULL,
	updated_at TEXT NOT NULL
);`

// Store implements crawler.Catalog and crawler.CursorStore over SQLite.
type Store struct {
	db         *sql.DB
	cursorName string
	now        func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(ctx context.Context, path, cursorName string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}
	if cursorName == "" {
		cursorName = "default"
	}
	return &Store{db: db, cursorName: cursorName, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

// RecordSnapshot inserts a catalog row.
func (s *Store) RecordSnapshot(ctx context.Context, meta crawler.SnapshotMeta) error {
	if meta.RunID == "" {
		return errors.New("run id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO snapshots (run_id, file_name, uri, digest, postings, skills, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.RunID, meta.FileName, meta.URI, meta.Digest, meta.Postings, meta.Skills,
		meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns matching rows, newest first. Timestamps are stored as
// RFC 3339 UTC text, so range filters compare lexically.
func (s *Store) ListSnapshots(ctx context.Context, filter crawler.SnapshotFilter) ([]crawler.SnapshotMeta, error) {
	var (
		conds []string
		args  []any
	)
	if !filter.From.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, filter.From.UTC().Format(time.RFC3339Nano))
	}
	if !filter.To.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, filter.To.UTC().Format(time.RFC3339Nano))
	}
	if len(filter.FileNames) > 0 {
		conds = append(conds, "file_name IN (?"+strings.Repeat(", ?", len(filter.FileNames)-1)+")")
		for _, name := range filter.FileNames {
			args = append(args, name)
		}
	}
	query := "SELECT run_id, file_name, uri, digest, postings, skills, created_at FROM snapshots"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close() //nolint:errcheck // rows.Err checked below
	var out []crawler.SnapshotMeta
	for rows.Next() {
		var (
			m       crawler.SnapshotMeta
			created string
		)
		if err := rows.Scan(&m.RunID, &m.FileName, &m.URI, &m.Digest, &m.Postings, &m.Skills, &created); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		m.CreatedAt, err = time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse snapshot time: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return out, nil
}

// Load returns the marker for the configured cursor name.
func (s *Store) Load(ctx context.Context) (string, bool, error) {
	var marker string
	err := s.db.QueryRowContext(ctx, "SELECT marker FROM crawl_cursors WHERE name = ?", s.cursorName).Scan(&marker)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("select cursor: %w", err)
	}
	return marker, marker != "", nil
}

// Save upserts the marker.
func (s *Store) Save(ctx context.Context, marker string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO crawl_cursors (name, marker, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET marker = excluded.marker, updated_at = excluded.updated_at`,
		s.cursorName, marker, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upsert cursor: %w", err)
	}
	return nil
}
