// Package history records image comparison results in a local SQLite ledger
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Entry is one comparison row.
type Entry struct {
	ID       int64
	Test     string
	Key      string
	Average  float64
	StdDev   float64
	Verdict  string
	Baseline bool
	At       time.Time
}

// Store wraps the SQLite database holding comparison history
type Store struct {
	db *sql.DB
}

// Open opens (and creates/migrates) the ledger at the given path
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("empty database path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	_, _ = db.ExecContext(ctx, "PRAGMA busy_timeout=5000;")
	_, _ = db.ExecContext(ctx, "PRAGMA synchronous=NORMAL;")

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	var ver int
	_ = s.db.QueryRowContext(ctx, "PRAGMA user_version;").Scan(&ver)

	// v1: comparisons table
	if ver == 0 {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS comparisons (
  id           INTEGER PRIMARY KEY AUTOINCREMENT,
  test_name    TEXT NOT NULL,
  image_key    TEXT NOT NULL,
  average      REAL NOT NULL,
  stddev       REAL NOT NULL,
  verdict      TEXT NOT NULL,
  has_baseline BOOLEAN NOT NULL DEFAULT TRUE,
  created_at   INTEGER NOT NULL
);
`)
		if err == nil {
			_, err = tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_comparisons_key ON comparisons(image_key, created_at);`)
		}
		if err == nil {
			_, err = tx.ExecContext(ctx, "PRAGMA user_version=1;")
		}
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migrate v1: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Append inserts a comparison row. A zero At is replaced by the current time.
func (s *Store) Append(ctx context.Context, e Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("history store not initialized")
	}
	if strings.TrimSpace(e.Key) == "" {
		return fmt.Errorf("empty image key")
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO comparisons(test_name, image_key, average, stddev, verdict, has_baseline, created_at)
VALUES(?,?,?,?,?,?,?)`, e.Test, e.Key, e.Average, e.StdDev, e.Verdict, e.Baseline, e.At.UnixNano())
	return err
}

// ByKey returns the rows for an image key, newest first. limit <= 0 means no limit.
func (s *Store) ByKey(ctx context.Context, key string, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	q := `SELECT id, test_name, image_key, average, stddev, verdict, has_baseline, created_at
FROM comparisons WHERE image_key=? ORDER BY created_at DESC, id DESC`
	args := []any{key}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, q, args...)
}

// Recent returns the newest rows across all keys.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("history store not initialized")
	}
	if limit <= 0 {
		limit = 50
	}
	return s.query(ctx, `SELECT id, test_name, image_key, average, stddev, verdict, has_baseline, created_at
FROM comparisons ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var at int64
		if err := rows.Scan(&e.ID, &e.Test, &e.Key, &e.Average, &e.StdDev, &e.Verdict, &e.Baseline, &at); err != nil {
			return nil, err
		}
		e.At = time.Unix(0, at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the given time and returns how many were removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("history store not initialized")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM comparisons WHERE created_at < ?`, before.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
